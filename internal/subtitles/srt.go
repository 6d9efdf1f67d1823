package subtitles

import (
	"regexp"
	"strings"
)

const vttHeader = "WEBVTT"

// srtTimestampPattern matches SRT cue timing lines, which use a comma before
// the millisecond component.
var srtTimestampPattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})`)

// ConvertSRTToVTT rewrites SRT caption content as WebVTT: cue timing commas
// become dots and the WEBVTT header is prepended when missing. Content that
// already carries a header is only timing-normalized, so the header appears
// exactly once.
func ConvertSRTToVTT(data []byte) []byte {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = srtTimestampPattern.ReplaceAllString(content, "$1.$2")
	if !HasVTTHeader([]byte(content)) {
		content = vttHeader + "\n\n" + strings.TrimLeft(content, "\n")
	}
	return []byte(content)
}

// HasVTTHeader reports whether caption content starts with a WEBVTT header.
func HasVTTHeader(data []byte) bool {
	trimmed := strings.TrimLeft(string(data), "\uFEFF\n\r\t ")
	return strings.HasPrefix(trimmed, vttHeader)
}

// LooksLikeSRT reports whether caption content uses SRT comma-based timing.
func LooksLikeSRT(data []byte) bool {
	return srtTimestampPattern.Match(data)
}
