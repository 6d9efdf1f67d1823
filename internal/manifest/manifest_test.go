package manifest

import (
	"strings"
	"testing"

	"spool/internal/renditions"
)

func TestBuildMasterBandwidthAndReference(t *testing.T) {
	set := []renditions.Rendition{
		{Name: "360p", Width: 640, Height: 360, Bitrate: "600k", AudioBitrate: "96k"},
	}
	out, err := BuildMaster(set, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "#EXT-X-STREAM-INF:BANDWIDTH=696000,RESOLUTION=640x360") {
		t.Fatalf("unexpected stream-inf line in %q", out)
	}
	if !strings.Contains(out, "360p/playlist.m3u8") {
		t.Fatalf("expected sub-playlist reference in %q", out)
	}
	if !strings.HasPrefix(out, "#EXTM3U\n#EXT-X-VERSION:3\n") {
		t.Fatalf("unexpected header in %q", out)
	}
}

func TestBuildMasterDeterministicOrdering(t *testing.T) {
	set := []renditions.Rendition{
		{Name: "720p", Width: 1280, Height: 720, Bitrate: "2500k", AudioBitrate: "128k"},
		{Name: "360p", Width: 640, Height: 360, Bitrate: "600k", AudioBitrate: "96k"},
	}
	first, err := BuildMaster(set, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	reversed := []renditions.Rendition{set[1], set[0]}
	second, err := BuildMaster(reversed, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if first != second {
		t.Fatalf("expected byte-identical output, got\n%q\nvs\n%q", first, second)
	}
	if strings.Index(first, "360p/") > strings.Index(first, "720p/") {
		t.Fatalf("expected ascending order in %q", first)
	}
}

func TestBuildMasterSharedAudioGroup(t *testing.T) {
	set := []renditions.Rendition{
		{Name: "360p", Width: 640, Height: 360, Bitrate: "600k", AudioBitrate: "96k"},
	}
	out, err := BuildMaster(set, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",NAME="Audio",DEFAULT=YES,AUTOSELECT=YES,URI="audio/playlist.m3u8"`) {
		t.Fatalf("expected audio group declaration in %q", out)
	}
	if !strings.Contains(out, `,AUDIO="audio"`) {
		t.Fatalf("expected stream entries to reference audio group in %q", out)
	}
	if strings.Count(out, "#EXT-X-MEDIA") != 1 {
		t.Fatalf("expected exactly one audio group in %q", out)
	}
}

func TestBuildMasterEmptySetFails(t *testing.T) {
	if _, err := BuildMaster(nil, false); err == nil {
		t.Fatal("expected error for empty set")
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"600k", 600000},
		{"96k", 96000},
		{"4.5m", 4500000},
		{"128000", 128000},
		{"", 0},
	}
	for _, tc := range cases {
		got, err := renditions.ParseRate(tc.in)
		if err != nil {
			t.Fatalf("ParseRate(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRate(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := renditions.ParseRate("fast"); err == nil {
		t.Fatal("expected error for non-numeric rate")
	}
}
