package journal

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestJournalLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Begin(ctx, "job-1", "item-9"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.UpdateStage(ctx, "job-1", "transcoding_hls", "2 renditions"); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if err := store.MarkComplete(ctx, "job-1", "https://cdn.example/vod/item-9/master.m3u8"); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	record, err := store.GetByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record == nil {
		t.Fatal("expected record")
	}
	if record.Status != StatusComplete || record.Stage != "complete" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.ManifestURL != "https://cdn.example/vod/item-9/master.m3u8" {
		t.Fatalf("unexpected manifest url %q", record.ManifestURL)
	}
	if record.StartedAt.IsZero() || record.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", record)
	}
}

func TestJournalFailureAndReclaim(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Begin(ctx, "job-1", "item-9"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.MarkFailed(ctx, "job-1", "no downloadable source"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	record, err := store.GetByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusFailed || record.ErrorMessage != "no downloadable source" {
		t.Fatalf("unexpected record %+v", record)
	}

	// Re-claiming resets the row.
	if err := store.Begin(ctx, "job-1", "item-9"); err != nil {
		t.Fatalf("re-begin: %v", err)
	}
	record, err = store.GetByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusProcessing || record.ErrorMessage != "" {
		t.Fatalf("expected reset record, got %+v", record)
	}
}

func TestJournalRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		if err := store.Begin(ctx, id, "item"); err != nil {
			t.Fatalf("begin %s: %v", id, err)
		}
	}
	if err := store.MarkComplete(ctx, "job-2", "url"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].JobID != "job-2" {
		t.Fatalf("expected most recently updated first, got %+v", records)
	}
}

func TestGetMissingJob(t *testing.T) {
	store := openTestStore(t)
	record, err := store.GetByJobID(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}
