package subtitles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the normalized track kind enumeration.
type Kind string

const (
	KindSubtitles Kind = "subtitles"
	KindCaptions  Kind = "captions"
)

// UndeterminedLanguage is the sentinel used when a track's language is unknown.
const UndeterminedLanguage = "und"

// MaxTracks bounds the size of any finalized track set.
const MaxTracks = 10

// maxLanguageLength bounds normalized language tags (enough for BCP 47
// language-region-variant forms).
const maxLanguageLength = 16

// Track is one subtitle track attached to a content item.
type Track struct {
	Language string `json:"language"`
	Label    string `json:"label"`
	URL      string `json:"url"`
	Kind     Kind   `json:"kind"`
	Default  bool   `json:"default"`
}

// Key returns the identity used for deduplication.
func (t Track) Key() string {
	return t.Language + "/" + string(t.Kind)
}

var labelCaser = cases.Upper(language.Und)

// Normalize applies the track normalization rules: language lowercased with
// underscores mapped to hyphens and filtered to [a-z0-9-], bounded length,
// "und" when empty; kind synonyms collapsed to the two-value enumeration;
// label falling back to the uppercased language.
func Normalize(t Track) Track {
	t.Language = NormalizeLanguage(t.Language)
	t.Kind = NormalizeKind(string(t.Kind))
	t.Label = strings.TrimSpace(t.Label)
	if t.Label == "" {
		t.Label = labelCaser.String(t.Language)
	}
	t.URL = strings.TrimSpace(t.URL)
	return t
}

// NormalizeLanguage canonicalizes a language tag. Recognized BCP 47 tags are
// canonicalized through the language matcher first so variants like "EN_us"
// come out as "en-us".
func NormalizeLanguage(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "_", "-")

	if tag, err := language.Parse(cleaned); err == nil && tag != language.Und {
		cleaned = strings.ToLower(tag.String())
	}

	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
		if b.Len() >= maxLanguageLength {
			break
		}
	}
	result := strings.Trim(b.String(), "-")
	if result == "" {
		return UndeterminedLanguage
	}
	return result
}

// NormalizeKind collapses free-form kind values to the two-value enumeration.
func NormalizeKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "captions", "caption", "cc":
		return KindCaptions
	default:
		return KindSubtitles
	}
}
