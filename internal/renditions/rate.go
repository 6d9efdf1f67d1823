package renditions

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRate converts an ffmpeg-style bitrate string ("600k", "4.5M", "96000")
// to bits per second.
func ParseRate(raw string) (int, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, nil
	}
	multiplier := 1.0
	switch {
	case strings.HasSuffix(value, "k"):
		multiplier = 1_000
		value = strings.TrimSuffix(value, "k")
	case strings.HasSuffix(value, "m"):
		multiplier = 1_000_000
		value = strings.TrimSuffix(value, "m")
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bitrate %q: %w", raw, err)
	}
	if number < 0 {
		return 0, fmt.Errorf("parse bitrate %q: negative value", raw)
	}
	return int(number * multiplier), nil
}
