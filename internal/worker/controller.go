// Package worker drives job processing: the per-job lifecycle state machine
// and the polling loop that feeds it.
package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"spool/internal/config"
	"spool/internal/controlplane"
	"spool/internal/journal"
	"spool/internal/logging"
	"spool/internal/manifest"
	"spool/internal/renditions"
	"spool/internal/services"
	"spool/internal/storage"
	"spool/internal/subtitles"
	"spool/internal/transcode"
)

// ControlPlane is the subset of the API client the controller needs.
type ControlPlane interface {
	Claim(ctx context.Context) (*controlplane.Job, error)
	Progress(ctx context.Context, jobID, stage, message string)
	Complete(ctx context.Context, jobID string, report controlplane.CompletionReport) error
	Fail(ctx context.Context, jobID, message string) error
}

// SourceStore fetches raw sources by storage path.
type SourceStore interface {
	Download(ctx context.Context, bucket, key, destPath string) error
}

// Uploader pushes a finished output tree to the output bucket.
type Uploader interface {
	UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error)
}

// Transcoder runs the HLS encode pass.
type Transcoder interface {
	Transcode(ctx context.Context, plan transcode.Plan) error
}

// SubtitleService prepares manual tracks and generates automatic ones. Both
// calls are mode-gated internally and return nil work when disabled.
type SubtitleService interface {
	PrepareManual(ctx context.Context, outputRoot string, tracks []subtitles.Track) ([]subtitles.PreparedTrack, error)
	GenerateAuto(ctx context.Context, sourcePath, outputRoot string, hasAudio bool) ([]subtitles.PreparedTrack, error)
}

// Controller owns one job at a time from claim to complete or failed. The
// job's working directory is private to the controller and removed on every
// exit path.
type Controller struct {
	cfg        *config.Config
	api        ControlPlane
	source     SourceStore
	uploader   Uploader
	transcoder Transcoder
	subtitles  SubtitleService
	journal    *journal.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// NewController wires the controller. The journal may be nil; everything else
// is required.
func NewController(
	cfg *config.Config,
	api ControlPlane,
	source SourceStore,
	uploader Uploader,
	transcoder Transcoder,
	subtitleSvc SubtitleService,
	store *journal.Store,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:        cfg,
		api:        api,
		source:     source,
		uploader:   uploader,
		transcoder: transcoder,
		subtitles:  subtitleSvc,
		journal:    store,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "worker"),
	}
}

// Process runs one claimed job through the full lifecycle. Any error has
// already been reported to the control plane as a job failure by the time it
// returns; the caller only logs it.
func (c *Controller) Process(ctx context.Context, job *controlplane.Job) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := c.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String("content_item", job.ContentItemID),
	)

	if c.journal != nil {
		if jerr := c.journal.Begin(ctx, job.ID, job.ContentItemID); jerr != nil {
			logger.Warn("journal begin failed", logging.Error(jerr))
		}
	}

	workDir := filepath.Join(c.cfg.Paths.WorkDir, "job-"+job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		err = services.Wrap(services.ErrTransient, StageClaimed, "workdir", "create working directory", err)
		c.reportFailure(ctx, job, logger, err)
		return err
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("working directory cleanup failed", logging.Error(rmErr))
		}
		if err != nil {
			c.reportFailure(ctx, job, logger, err)
		}
	}()

	logger.Info("processing job", logging.Any("qualities", job.RequestedQualities))

	c.checkpoint(ctx, job.ID, StagePreparingSource, "")
	sourcePath, err := c.fetchSource(ctx, job, workDir, logger)
	if err != nil {
		return err
	}
	probe, err := inspectSource(ctx, c.cfg.Encoding.FFprobeBinary, sourcePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StagePreparingSource, "ffprobe", "inspect source", err)
	}

	outputDir := filepath.Join(workDir, "output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, StagePreparingSource, "workdir", "create output directory", err)
	}

	keyPrefix, urlPrefix := c.remotePrefix(job)
	subtitleOnly := renditions.IsSubtitleOnly(job.RequestedQualities)

	report := controlplane.CompletionReport{
		RenditionURLs:   map[string]string{},
		DurationSeconds: probe.DurationSeconds(),
	}

	if subtitleOnly {
		c.checkpoint(ctx, job.ID, StageSkippedSubtitleOnly, "reusing recorded renditions")
		report.ManifestURL = job.Metadata.ManifestURL
		if report.ManifestURL == "" {
			report.ManifestURL = urlPrefix + "/" + manifest.MasterFilename
		}
		for name, url := range job.Metadata.QualityURLs {
			report.RenditionURLs[name] = url
		}
	} else {
		video, ok := probe.VideoStream()
		if !ok {
			return services.Wrap(services.ErrValidation, StagePreparingSource, "ffprobe", "source has no video stream", nil)
		}
		set := renditions.Select(c.cfg.Encoding.Renditions, job.RequestedQualities, video.Height)
		c.checkpoint(ctx, job.ID, StageTranscodingHLS, fmt.Sprintf("%d renditions", len(set)))

		separateAudio := c.cfg.Encoding.SeparateAudio && probe.HasAudio()
		plan, err := transcode.BuildPlan(sourcePath, outputDir, set, transcode.PlanOptions{
			FrameRate:     video.FrameRate(),
			HasAudio:      probe.HasAudio(),
			SeparateAudio: separateAudio,
		})
		if err != nil {
			return err
		}
		if err := c.transcoder.Transcode(ctx, plan); err != nil {
			return err
		}

		// ffmpeg wrote a master playlist of its own; replace it with ours so
		// the advertised bandwidth figures come from the configured ladder.
		master, err := manifest.BuildMaster(set, plan.SeparateAudio)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(outputDir, manifest.MasterFilename), []byte(master), 0o644); err != nil {
			return services.Wrap(services.ErrTransient, StageTranscodingHLS, "manifest", "write master playlist", err)
		}
		report.ManifestURL = urlPrefix + "/" + manifest.MasterFilename
		for _, r := range set {
			report.RenditionURLs[r.Name] = urlPrefix + "/" + manifest.RenditionPlaylist(r.Name)
		}
	}

	c.checkpoint(ctx, job.ID, StageProcessingManualSubtitles, "")
	manual, err := c.subtitles.PrepareManual(ctx, outputDir, manualTracks(job))
	if err != nil {
		return err
	}
	c.checkpoint(ctx, job.ID, StageGeneratingAutoSubtitles, "")
	auto, err := c.subtitles.GenerateAuto(ctx, sourcePath, outputDir, probe.HasAudio())
	if err != nil {
		return err
	}
	report.SubtitleTracks = c.finalTrackSet(manual, auto, urlPrefix)

	c.checkpoint(ctx, job.ID, StageFinalizing, "")
	uploaded, err := c.uploader.UploadDir(ctx, outputDir, keyPrefix)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageFinalizing, "upload", "upload output", err)
	}
	logger.Info("output uploaded",
		logging.Int("objects", uploaded),
		logging.String("prefix", keyPrefix),
	)

	if err := c.api.Complete(ctx, job.ID, report); err != nil {
		return services.Wrap(services.ErrTransient, StageFinalizing, "controlplane", "report completion", err)
	}
	if c.journal != nil {
		if jerr := c.journal.MarkComplete(ctx, job.ID, report.ManifestURL); jerr != nil {
			logger.Warn("journal completion failed", logging.Error(jerr))
		}
	}
	logger.Info("job complete",
		logging.String("manifest_url", report.ManifestURL),
		logging.Int("subtitle_tracks", len(report.SubtitleTracks)),
	)
	return nil
}

// fetchSource downloads the job's source media into workDir, trying the
// direct URL first and falling back to the raw storage path. Absence of both
// is fatal for the job, not retried.
func (c *Controller) fetchSource(ctx context.Context, job *controlplane.Job, workDir string, logger *slog.Logger) (string, error) {
	if !job.HasDownloadableSource() {
		return "", services.Wrap(services.ErrValidation, StagePreparingSource, "download", "no downloadable source", nil)
	}
	dest := filepath.Join(workDir, "source"+sourceExt(job))

	var urlErr error
	if url := strings.TrimSpace(job.SourceURL); url != "" {
		urlErr = c.downloadURL(ctx, url, dest)
		if urlErr == nil {
			return dest, nil
		}
		logger.Warn("direct source download failed, trying storage path", logging.Error(urlErr))
	}
	if key := strings.TrimSpace(job.StoragePath); key != "" {
		if err := c.source.Download(ctx, c.cfg.Storage.RawBucket, key, dest); err != nil {
			return "", services.Wrap(services.ErrExternalTool, StagePreparingSource, "download", "fetch source from storage", err)
		}
		return dest, nil
	}
	return "", services.Wrap(services.ErrExternalTool, StagePreparingSource, "download", "fetch source", urlErr)
}

func (c *Controller) downloadURL(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build source request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create source file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dest)
		return fmt.Errorf("write source file: %w", err)
	}
	return file.Close()
}

// remotePrefix resolves the output bucket key prefix and the public URL
// prefix for the job. A subtitle-only job reuses the location of its
// previously recorded master playlist; everything else derives a default
// prefix from the content item. The two prefixes always describe the same
// location: when the recorded URL cannot be mapped back to a bucket key,
// both fall back to the content-derived default rather than splitting.
func (c *Controller) remotePrefix(job *controlplane.Job) (keyPrefix, urlPrefix string) {
	keyPrefix = path.Join("vod", job.ContentItemID)
	urlPrefix = c.publicURL(keyPrefix)

	if !renditions.IsSubtitleOnly(job.RequestedQualities) {
		return keyPrefix, urlPrefix
	}
	recorded := strings.TrimSpace(job.Metadata.ManifestURL)
	suffix := "/" + manifest.MasterFilename
	if !strings.HasSuffix(recorded, suffix) {
		return keyPrefix, urlPrefix
	}
	base := c.cdnBase()
	if base == "" || !strings.HasPrefix(recorded, base+"/") {
		return keyPrefix, urlPrefix
	}
	derived := strings.TrimSuffix(recorded, suffix)
	key := strings.TrimPrefix(derived, base+"/")
	if key == "" {
		return keyPrefix, urlPrefix
	}
	return key, derived
}

func (c *Controller) cdnBase() string {
	return strings.TrimRight(strings.TrimSpace(c.cfg.Upload.CDNBaseURL), "/")
}

func (c *Controller) publicURL(key string) string {
	if base := c.cdnBase(); base != "" {
		return base + "/" + key
	}
	return key
}

// finalTrackSet merges manual and auto prepared tracks, assigns each its
// public URL, and returns the reconciled wire representation.
func (c *Controller) finalTrackSet(manual, auto []subtitles.PreparedTrack, urlPrefix string) []controlplane.SubtitleTrack {
	manualTracks := make([]subtitles.Track, 0, len(manual))
	for _, p := range manual {
		track := p.Track
		track.URL = urlPrefix + "/" + p.RelPath
		manualTracks = append(manualTracks, track)
	}
	autoTracks := make([]subtitles.Track, 0, len(auto))
	for _, p := range auto {
		track := p.Track
		track.URL = urlPrefix + "/" + p.RelPath
		autoTracks = append(autoTracks, track)
	}
	merged := subtitles.Merge(manualTracks, autoTracks)
	if len(merged) == 0 {
		return nil
	}
	out := make([]controlplane.SubtitleTrack, 0, len(merged))
	for _, t := range merged {
		out = append(out, controlplane.SubtitleTrack{
			Language: t.Language,
			Label:    t.Label,
			URL:      t.URL,
			Kind:     string(t.Kind),
			Default:  t.Default,
		})
	}
	return out
}

// checkpoint reports a stage transition to the control plane and journal.
// Both are best effort.
func (c *Controller) checkpoint(ctx context.Context, jobID, stage, message string) {
	c.api.Progress(ctx, jobID, stage, message)
	if c.journal != nil {
		if err := c.journal.UpdateStage(ctx, jobID, stage, message); err != nil {
			c.logger.Warn("journal stage update failed",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
			)
		}
	}
}

func (c *Controller) reportFailure(ctx context.Context, job *controlplane.Job, logger *slog.Logger, cause error) {
	message := cause.Error()
	if err := c.api.Fail(ctx, job.ID, message); err != nil {
		logger.Error("failure report did not reach control plane", logging.Error(err))
	}
	if c.journal != nil {
		if err := c.journal.MarkFailed(ctx, job.ID, message); err != nil {
			logger.Warn("journal failure update failed", logging.Error(err))
		}
	}
	logger.Error("job failed", logging.Error(cause))
}

func manualTracks(job *controlplane.Job) []subtitles.Track {
	if len(job.Metadata.SubtitleTracks) == 0 {
		return nil
	}
	tracks := make([]subtitles.Track, 0, len(job.Metadata.SubtitleTracks))
	for _, t := range job.Metadata.SubtitleTracks {
		tracks = append(tracks, subtitles.Track{
			Language: t.Language,
			Label:    t.Label,
			URL:      t.URL,
			Kind:     subtitles.Kind(t.Kind),
			Default:  t.Default,
		})
	}
	return tracks
}

func sourceExt(job *controlplane.Job) string {
	for _, candidate := range []string{job.SourceURL, job.StoragePath} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if idx := strings.IndexAny(candidate, "?#"); idx >= 0 {
			candidate = candidate[:idx]
		}
		if ext := path.Ext(candidate); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".mp4"
}

var _ SourceStore = (*storage.Client)(nil)
