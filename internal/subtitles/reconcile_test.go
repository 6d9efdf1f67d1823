package subtitles

import (
	"fmt"
	"testing"
)

func TestNormalizeLanguageRules(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"EN", "en"},
		{"en_US", "en-us"},
		{"  Fr  ", "fr"},
		{"", "und"},
		{"!!", "und"},
		{"portuguese-from-brazil-extended-tag", "portuguese-from"},
	}
	for _, tc := range cases {
		if got := NormalizeLanguage(tc.in); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeKindSynonyms(t *testing.T) {
	for _, raw := range []string{"caption", "cc", "CAPTIONS"} {
		if got := NormalizeKind(raw); got != KindCaptions {
			t.Fatalf("NormalizeKind(%q) = %q, want captions", raw, got)
		}
	}
	for _, raw := range []string{"", "subtitles", "anything"} {
		if got := NormalizeKind(raw); got != KindSubtitles {
			t.Fatalf("NormalizeKind(%q) = %q, want subtitles", raw, got)
		}
	}
}

func TestNormalizeLabelFallsBackToUppercasedLanguage(t *testing.T) {
	track := Normalize(Track{Language: "en_us"})
	if track.Label != "EN-US" {
		t.Fatalf("expected label EN-US, got %q", track.Label)
	}
	track = Normalize(Track{Language: "fr", Label: "Français"})
	if track.Label != "Français" {
		t.Fatalf("expected explicit label preserved, got %q", track.Label)
	}
}

func TestReconcileDedupPrefersDefault(t *testing.T) {
	tracks := []Track{
		{Language: "en", Kind: KindSubtitles, Label: "First"},
		{Language: "en", Kind: KindSubtitles, Label: "Second", Default: true},
	}
	out := Reconcile(tracks)
	if len(out) != 1 {
		t.Fatalf("expected 1 track, got %d", len(out))
	}
	if out[0].Label != "Second" || !out[0].Default {
		t.Fatalf("expected default-flagged track to win, got %+v", out[0])
	}
}

func TestReconcileDedupKeepsFirstSeenWithoutDefault(t *testing.T) {
	tracks := []Track{
		{Language: "en", Kind: KindSubtitles, Label: "First"},
		{Language: "en", Kind: KindSubtitles, Label: "Second"},
	}
	out := Reconcile(tracks)
	if len(out) != 1 || out[0].Label != "First" {
		t.Fatalf("expected first-seen track to win, got %+v", out)
	}
}

func TestReconcilePromotesFirstDefault(t *testing.T) {
	// Promotion happens after sorting, so the alphabetically first label wins
	// even when it was seen last.
	out := Reconcile([]Track{
		{Language: "fr", Kind: KindSubtitles, Label: "French"},
		{Language: "en", Kind: KindSubtitles, Label: "English"},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(out))
	}
	defaults := 0
	for _, track := range out {
		if track.Default {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
	if out[0].Label != "English" || !out[0].Default {
		t.Fatalf("expected English promoted to default and sorted first, got %+v", out)
	}
	if out[1].Label != "French" || out[1].Default {
		t.Fatalf("expected French second without default, got %+v", out)
	}
}

func TestReconcileSortsDefaultFirstThenLabel(t *testing.T) {
	out := Reconcile([]Track{
		{Language: "fr", Kind: KindSubtitles, Label: "French"},
		{Language: "de", Kind: KindSubtitles, Label: "German", Default: true},
		{Language: "en", Kind: KindSubtitles, Label: "English"},
	})
	if out[0].Label != "German" {
		t.Fatalf("expected default track first, got %+v", out)
	}
	if out[1].Label != "English" || out[2].Label != "French" {
		t.Fatalf("expected alphabetical order after default, got %+v", out)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	first := Reconcile([]Track{
		{Language: "en", Kind: KindSubtitles, Label: "English", Default: true},
		{Language: "fr", Kind: KindSubtitles, Label: "French"},
	})
	second := Reconcile(first)
	if len(first) != len(second) {
		t.Fatalf("length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("track %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestReconcileCapsAtMaxTracks(t *testing.T) {
	tracks := make([]Track, 0, MaxTracks+5)
	for i := 0; i < MaxTracks+5; i++ {
		tracks = append(tracks, Track{
			Language: fmt.Sprintf("l%02d", i),
			Kind:     KindSubtitles,
		})
	}
	out := Reconcile(tracks)
	if len(out) != MaxTracks {
		t.Fatalf("expected %d tracks, got %d", MaxTracks, len(out))
	}
}

func TestMergeManualWins(t *testing.T) {
	manual := []Track{{Language: "en", Kind: KindSubtitles, Label: "Manual EN"}}
	auto := []Track{{Language: "en", Kind: KindSubtitles, Label: "Auto EN"}}
	out := Merge(manual, auto)
	if len(out) != 1 || out[0].Label != "Manual EN" {
		t.Fatalf("expected manual track to win, got %+v", out)
	}
}

func TestMergeAutoFillsGaps(t *testing.T) {
	manual := []Track{{Language: "en", Kind: KindSubtitles}}
	auto := []Track{{Language: "fr", Kind: KindSubtitles}}
	out := Merge(manual, auto)
	if len(out) != 2 {
		t.Fatalf("expected both tracks to survive, got %+v", out)
	}
	languages := map[string]bool{}
	for _, track := range out {
		languages[track.Language] = true
	}
	if !languages["en"] || !languages["fr"] {
		t.Fatalf("expected en and fr, got %+v", out)
	}
}

func TestMergeManualWinsEvenWhenAutoFlaggedDefault(t *testing.T) {
	manual := []Track{{Language: "en", Kind: KindSubtitles, Label: "Manual EN"}}
	auto := []Track{{Language: "en", Kind: KindSubtitles, Label: "Auto EN", Default: true}}
	out := Merge(manual, auto)
	if len(out) != 1 || out[0].Label != "Manual EN" {
		t.Fatalf("expected manual precedence over default-flagged auto, got %+v", out)
	}
}
