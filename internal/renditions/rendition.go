package renditions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"spool/internal/services"
)

// Rendition is one named target quality in the ladder. Bitrate fields use the
// ffmpeg "600k" shorthand so they can be passed to the encoder verbatim.
type Rendition struct {
	Name         string `json:"name" toml:"name"`
	Width        int    `json:"width" toml:"width"`
	Height       int    `json:"height" toml:"height"`
	Bitrate      string `json:"bitrate" toml:"bitrate"`
	MaxRate      string `json:"maxRate" toml:"max_rate"`
	BufSize      string `json:"bufSize" toml:"buf_size"`
	AudioBitrate string `json:"audioBitrate" toml:"audio_bitrate"`
}

// Label sentinels that may appear in a job's requested quality list but never
// name a ladder entry.
const (
	AutoLabel         = "auto"
	SubtitleOnlyLabel = "subtitles-only"
)

// ParseLadderJSON decodes a JSON rendition ladder, typically sourced from the
// SPOOL_LADDER_JSON environment override.
func ParseLadderJSON(raw string) ([]Rendition, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var ladder []Rendition
	if err := json.Unmarshal([]byte(trimmed), &ladder); err != nil {
		return nil, fmt.Errorf("parse ladder json: %w", err)
	}
	return ladder, nil
}

// ValidateLadder checks the configured ladder invariants: non-empty, positive
// dimensions, unique names. An empty ladder is a fatal configuration error.
func ValidateLadder(ladder []Rendition) error {
	if len(ladder) == 0 {
		return services.Wrap(services.ErrConfiguration, "", "ladder", "rendition ladder must not be empty", nil)
	}
	seen := make(map[string]struct{}, len(ladder))
	for _, r := range ladder {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return services.Wrap(services.ErrConfiguration, "", "ladder", "rendition name must not be empty", nil)
		}
		if r.Width <= 0 || r.Height <= 0 {
			return services.Wrap(services.ErrConfiguration, "", "ladder",
				fmt.Sprintf("rendition %s must have positive dimensions", name), nil)
		}
		if _, dup := seen[name]; dup {
			return services.Wrap(services.ErrConfiguration, "", "ladder",
				fmt.Sprintf("duplicate rendition name %s", name), nil)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// SortAscending orders a rendition set by (height, width) ascending, in place.
func SortAscending(set []Rendition) {
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Height != set[j].Height {
			return set[i].Height < set[j].Height
		}
		return set[i].Width < set[j].Width
	})
}

// IsSubtitleOnly reports whether a requested-quality list marks the job as a
// subtitle-only reprocess.
func IsSubtitleOnly(requested []string) bool {
	for _, label := range requested {
		if strings.EqualFold(strings.TrimSpace(label), SubtitleOnlyLabel) {
			return true
		}
	}
	return false
}
