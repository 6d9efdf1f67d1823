package main

import (
	"strings"
	"testing"

	"spool/internal/journal"
)

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	output := renderTable(
		[]string{"JOB", "STATUS"},
		[][]string{{"job-1", "complete"}, {"job-2", "failed"}},
	)
	for _, fragment := range []string{"JOB", "STATUS", "job-1", "complete", "job-2", "failed"} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected %q in table output:\n%s", fragment, output)
		}
	}
}

func TestStatusDetailPicksFieldByStatus(t *testing.T) {
	failed := journal.Record{Status: journal.StatusFailed, ErrorMessage: "no downloadable source", ManifestURL: "url"}
	if got := statusDetail(failed); got != "no downloadable source" {
		t.Fatalf("unexpected detail %q", got)
	}
	complete := journal.Record{Status: journal.StatusComplete, ManifestURL: "https://cdn/x/master.m3u8"}
	if got := statusDetail(complete); got != "https://cdn/x/master.m3u8" {
		t.Fatalf("unexpected detail %q", got)
	}
	processing := journal.Record{Status: journal.StatusProcessing, Message: "2 renditions"}
	if got := statusDetail(processing); got != "2 renditions" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("a", 100)
	got := truncate(long, 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation %q", got)
	}
}
