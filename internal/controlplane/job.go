package controlplane

import "strings"

// Job statuses as reported by the control plane.
const (
	StatusQueued     = "queued"
	StatusClaimed    = "claimed"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Job is a unit of work claimed from the control plane. The worker owns it
// exclusively until Complete or Fail hands ownership back.
type Job struct {
	ID                 string   `json:"id"`
	ContentItemID      string   `json:"content_item_id"`
	SourceURL          string   `json:"source_url,omitempty"`
	StoragePath        string   `json:"storage_path,omitempty"`
	RequestedQualities []string `json:"requested_qualities,omitempty"`
	Metadata           Metadata `json:"metadata,omitempty"`
	Status             string   `json:"status,omitempty"`
}

// Metadata carries previously computed output recorded on the content item.
// A subtitle-only job reuses these instead of transcoding again.
type Metadata struct {
	ManifestURL    string            `json:"manifest_url,omitempty"`
	QualityURLs    map[string]string `json:"quality_urls,omitempty"`
	SubtitleTracks []SubtitleTrack   `json:"subtitle_tracks,omitempty"`
}

// SubtitleTrack mirrors the control plane's wire shape for a caption track.
type SubtitleTrack struct {
	Language string `json:"language"`
	Label    string `json:"label,omitempty"`
	URL      string `json:"url,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Default  bool   `json:"default,omitempty"`
}

// HasDownloadableSource reports whether the job names at least one place the
// source media can be fetched from.
func (j *Job) HasDownloadableSource() bool {
	return strings.TrimSpace(j.SourceURL) != "" || strings.TrimSpace(j.StoragePath) != ""
}
