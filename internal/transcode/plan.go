package transcode

import (
	"fmt"
	"path/filepath"
	"strings"

	"spool/internal/media/ffprobe"
	"spool/internal/renditions"
	"spool/internal/services"
)

// SegmentSeconds is the fixed HLS segment duration. Keyframe cadence is
// derived from it so every segment starts on an IDR frame.
const SegmentSeconds = 2

// Plan is a fully resolved ffmpeg invocation for one job: a single input
// fanned out to every selected rendition in one pass.
type Plan struct {
	InputPath     string
	OutputDir     string
	Renditions    []renditions.Rendition
	HasAudio      bool
	SeparateAudio bool
	Args          []string
}

// PlanOptions carries the source facts and encoder knobs that shape the
// argument list.
type PlanOptions struct {
	FrameRate     float64
	HasAudio      bool
	SeparateAudio bool
}

// BuildPlan assembles the ffmpeg argument list for a rendition set. The input
// is split once, each branch scaled and padded to the rendition's exact frame
// size, and all variants are written by a single HLS muxer using
// var_stream_map so ffmpeg emits the per-rendition playlists itself.
func BuildPlan(inputPath, outputDir string, set []renditions.Rendition, opts PlanOptions) (Plan, error) {
	if len(set) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "transcoding_hls", "plan", "empty rendition set", nil)
	}
	ordered := make([]renditions.Rendition, len(set))
	copy(ordered, set)
	renditions.SortAscending(ordered)

	separateAudio := opts.SeparateAudio && opts.HasAudio

	gop := ffprobe.KeyframeInterval(opts.FrameRate, SegmentSeconds)

	args := []string{
		"-hide_banner",
		"-y",
		"-i", inputPath,
		"-filter_complex", buildFilterGraph(ordered),
	}

	for i, r := range ordered {
		maxRate := r.MaxRate
		if strings.TrimSpace(maxRate) == "" {
			maxRate = r.Bitrate
		}
		bufSize := r.BufSize
		if strings.TrimSpace(bufSize) == "" {
			bufSize = doubledRate(r.Bitrate)
		}
		args = append(args,
			"-map", fmt.Sprintf("[v%dout]", i),
			fmt.Sprintf("-c:v:%d", i), "libx264",
			fmt.Sprintf("-b:v:%d", i), r.Bitrate,
			fmt.Sprintf("-maxrate:v:%d", i), maxRate,
			fmt.Sprintf("-bufsize:v:%d", i), bufSize,
			"-preset", "veryfast",
			"-profile:v", "main",
		)
	}
	switch {
	case separateAudio:
		// One shared audio encode; renditions reference it through the agroup.
		args = append(args,
			"-map", "a:0",
			"-c:a:0", "aac",
			"-b:a:0", sharedAudioRate(ordered),
			"-ac:a:0", "2",
		)
	case opts.HasAudio:
		for i, r := range ordered {
			audioRate := r.AudioBitrate
			if strings.TrimSpace(audioRate) == "" {
				audioRate = "96k"
			}
			args = append(args,
				"-map", "a:0",
				fmt.Sprintf("-c:a:%d", i), "aac",
				fmt.Sprintf("-b:a:%d", i), audioRate,
				fmt.Sprintf("-ac:a:%d", i), "2",
			)
		}
	}

	args = append(args,
		"-g", fmt.Sprint(gop),
		"-keyint_min", fmt.Sprint(gop),
		"-sc_threshold", "0",
		"-f", "hls",
		"-hls_time", fmt.Sprint(SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(outputDir, "%v", "segment_%05d.ts"),
		"-master_pl_name", "master.m3u8",
		"-var_stream_map", buildStreamMap(ordered, opts.HasAudio, separateAudio),
		filepath.Join(outputDir, "%v", "playlist.m3u8"),
	)

	return Plan{
		InputPath:     inputPath,
		OutputDir:     outputDir,
		Renditions:    ordered,
		HasAudio:      opts.HasAudio,
		SeparateAudio: separateAudio,
		Args:          args,
	}, nil
}

// buildFilterGraph splits the decoded video once and scales each branch down
// to its rendition frame, padding to preserve aspect ratio. Width and height
// are forced even because libx264 rejects odd dimensions in yuv420p.
func buildFilterGraph(set []renditions.Rendition) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[0:v]split=%d", len(set)))
	for i := range set {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	for i, r := range set {
		width := evenDimension(r.Width)
		height := evenDimension(r.Height)
		fmt.Fprintf(&b,
			";[v%d]scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2[v%dout]",
			i, width, height, width, height, i)
	}
	return b.String()
}

// buildStreamMap lays out the HLS variants. With separate audio the shared
// track becomes its own "audio" variant and every video variant joins its
// agroup, so the audio playlist lands at audio/playlist.m3u8 next to the
// rendition playlists.
func buildStreamMap(set []renditions.Rendition, hasAudio, separateAudio bool) string {
	if separateAudio {
		entries := make([]string, 0, len(set)+1)
		entries = append(entries, "a:0,agroup:audio,name:audio,default:yes")
		for i, r := range set {
			entries = append(entries, fmt.Sprintf("v:%d,agroup:audio,name:%s", i, r.Name))
		}
		return strings.Join(entries, " ")
	}
	entries := make([]string, 0, len(set))
	for i, r := range set {
		if hasAudio {
			entries = append(entries, fmt.Sprintf("v:%d,a:%d,name:%s", i, i, r.Name))
		} else {
			entries = append(entries, fmt.Sprintf("v:%d,name:%s", i, r.Name))
		}
	}
	return strings.Join(entries, " ")
}

// sharedAudioRate picks the highest audio bitrate configured across the set
// for the shared audio track, falling back to a safe default.
func sharedAudioRate(set []renditions.Rendition) string {
	best := ""
	bestBits := 0
	for _, r := range set {
		rate := strings.TrimSpace(r.AudioBitrate)
		if rate == "" {
			continue
		}
		bits, err := renditions.ParseRate(rate)
		if err != nil || bits <= bestBits {
			continue
		}
		best, bestBits = rate, bits
	}
	if best == "" {
		return "96k"
	}
	return best
}

func evenDimension(value int) int {
	if value%2 != 0 {
		return value + 1
	}
	return value
}

// doubledRate returns twice the given bitrate in the same "600k" notation,
// used as the default VBV buffer size.
func doubledRate(rate string) string {
	bits, err := renditions.ParseRate(rate)
	if err != nil || bits <= 0 {
		return rate
	}
	return fmt.Sprintf("%dk", bits*2/1000)
}
