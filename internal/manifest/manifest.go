// Package manifest renders the master HLS playlist for a processed job.
package manifest

import (
	"fmt"
	"strings"

	"spool/internal/renditions"
)

// MasterFilename is the fixed name of the master playlist object.
const MasterFilename = "master.m3u8"

// RenditionPlaylist returns the sub-playlist reference for a rendition.
func RenditionPlaylist(name string) string {
	return name + "/playlist.m3u8"
}

const (
	audioGroupID       = "audio"
	audioPlaylistEntry = "audio/playlist.m3u8"
)

// BuildMaster renders the master playlist text for a rendition set. Output is
// deterministic for fixed inputs: renditions are ordered ascending by
// (height, width) and the header is fixed. When separateAudio is set, a shared
// audio group is declared and every stream entry references it; otherwise the
// audio bitrate is assumed muxed into each rendition.
func BuildMaster(set []renditions.Rendition, separateAudio bool) (string, error) {
	if len(set) == 0 {
		return "", fmt.Errorf("build master playlist: empty rendition set")
	}
	ordered := make([]renditions.Rendition, len(set))
	copy(ordered, set)
	renditions.SortAscending(ordered)

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if separateAudio {
		fmt.Fprintf(&b,
			"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=%q,NAME=\"Audio\",DEFAULT=YES,AUTOSELECT=YES,URI=%q\n",
			audioGroupID, audioPlaylistEntry)
	}

	for _, r := range ordered {
		bandwidth, err := Bandwidth(r)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d", bandwidth, r.Width, r.Height)
		if separateAudio {
			fmt.Fprintf(&b, ",AUDIO=%q", audioGroupID)
		}
		b.WriteByte('\n')
		b.WriteString(RenditionPlaylist(r.Name))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Bandwidth computes a rendition's advertised bandwidth in bits per second:
// video bitrate plus associated audio bitrate.
func Bandwidth(r renditions.Rendition) (int, error) {
	video, err := renditions.ParseRate(r.Bitrate)
	if err != nil {
		return 0, fmt.Errorf("rendition %s: %w", r.Name, err)
	}
	audio, err := renditions.ParseRate(r.AudioBitrate)
	if err != nil {
		return 0, fmt.Errorf("rendition %s: %w", r.Name, err)
	}
	return video + audio, nil
}
