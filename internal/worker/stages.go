package worker

// Lifecycle stage names reported to the control plane and recorded in the
// local journal. A job moves strictly forward through these; failed is
// reachable from any non-terminal stage.
const (
	StageClaimed                   = "claimed"
	StagePreparingSource           = "preparing_source"
	StageTranscodingHLS            = "transcoding_hls"
	StageSkippedSubtitleOnly       = "skipped_subtitle_only"
	StageProcessingManualSubtitles = "processing_manual_subtitles"
	StageGeneratingAutoSubtitles   = "generating_auto_subtitles"
	StageFinalizing                = "finalizing"
	StageComplete                  = "complete"
	StageFailed                    = "failed"
)
