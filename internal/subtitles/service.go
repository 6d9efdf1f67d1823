package subtitles

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spool/internal/logging"
	"spool/internal/services"
)

// Mode selects which subtitle sources contribute to the final track set.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a configured mode string.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case ModeOff, ModeManual, ModeAuto, ModeHybrid:
		return mode, nil
	default:
		return ModeOff, fmt.Errorf("unknown subtitle mode %q", raw)
	}
}

// Options configures the reconciliation service.
type Options struct {
	Mode Mode
	// Languages are the target languages for auto generation; empty means one
	// auto-detected track.
	Languages []string
	// Required fails the job when auto generation cannot run.
	Required bool
}

// PreparedTrack pairs a normalized track with the caption file it references,
// relative to the job output root.
type PreparedTrack struct {
	Track   Track
	RelPath string
}

// Service prepares manual and auto subtitle tracks for one job.
type Service struct {
	opts      Options
	generator Generator
	client    *http.Client
	logger    *slog.Logger
}

const subtitleDir = "subtitles"

// NewService constructs a subtitle service. The generator may be nil when the
// mode never generates.
func NewService(opts Options, generator Generator, logger *slog.Logger) *Service {
	return &Service{
		opts:      opts,
		generator: generator,
		client:    &http.Client{Timeout: 2 * time.Minute},
		logger:    logging.NewComponentLogger(logger, "subtitles"),
	}
}

// WithHTTPClient overrides the download client (for testing).
func (s *Service) WithHTTPClient(client *http.Client) {
	if client != nil {
		s.client = client
	}
}

// Mode returns the configured mode.
func (s *Service) Mode() Mode {
	return s.opts.Mode
}

// PrepareManual downloads caller-supplied tracks into the job output tree and
// normalizes their caption format. SRT timing is converted to WebVTT and a
// missing header is prepended. Tracks sharing a (language, kind) identity
// share a caption filename, so duplicates are resolved here: the first-seen
// track is kept unless a later one is flagged default, which replaces it,
// file content included. A manual track that cannot be fetched fails the job:
// the caller explicitly asked for it.
func (s *Service) PrepareManual(ctx context.Context, outputRoot string, tracks []Track) ([]PreparedTrack, error) {
	if s.opts.Mode != ModeManual && s.opts.Mode != ModeHybrid {
		return nil, nil
	}
	prepared := make([]PreparedTrack, 0, len(tracks))
	index := make(map[string]int, len(tracks))
	for _, raw := range tracks {
		track := Normalize(raw)
		if track.URL == "" {
			s.logger.Warn("skipping manual track without source url",
				logging.String("language", track.Language),
				logging.String("kind", string(track.Kind)))
			continue
		}
		at, dup := index[track.Key()]
		if dup && (prepared[at].Track.Default || !track.Default) {
			s.logger.Warn("skipping duplicate manual track",
				logging.String("language", track.Language),
				logging.String("kind", string(track.Kind)))
			continue
		}
		data, err := s.download(ctx, track.URL)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "processing_manual_subtitles", "download",
				fmt.Sprintf("fetch %s track", track.Language), err)
		}
		data = ConvertSRTToVTT(data)

		relPath := filepath.Join(subtitleDir, fmt.Sprintf("%s-%s.vtt", track.Language, track.Kind))
		if err := writeCaptionFile(outputRoot, relPath, data); err != nil {
			return nil, services.Wrap(services.ErrTransient, "processing_manual_subtitles", "write", relPath, err)
		}
		entry := PreparedTrack{Track: track, RelPath: filepath.ToSlash(relPath)}
		if dup {
			prepared[at] = entry
			continue
		}
		index[track.Key()] = len(prepared)
		prepared = append(prepared, entry)
	}
	return prepared, nil
}

// GenerateAuto produces machine-generated tracks, one per configured language
// or a single auto-detected track. When generation is not required, failures
// are logged and skipped so the job continues with a degraded set; when it is
// required, a missing audio track or a generator failure fails the job.
func (s *Service) GenerateAuto(ctx context.Context, sourcePath, outputRoot string, hasAudio bool) ([]PreparedTrack, error) {
	if s.opts.Mode != ModeAuto && s.opts.Mode != ModeHybrid {
		return nil, nil
	}
	if !hasAudio {
		if s.opts.Required {
			return nil, services.Wrap(services.ErrValidation, "generating_auto_subtitles", "probe",
				"source has no audio track", nil)
		}
		s.logger.Warn("source has no audio track, skipping subtitle generation")
		return nil, nil
	}
	if s.generator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generating_auto_subtitles", "generator",
			"no subtitle generator configured", nil)
	}

	languages := s.opts.Languages
	if len(languages) == 0 {
		languages = []string{""}
	}

	prepared := make([]PreparedTrack, 0, len(languages))
	for _, lang := range languages {
		track, err := s.generateOne(ctx, sourcePath, outputRoot, lang)
		if err != nil {
			if s.opts.Required {
				return nil, services.Wrap(services.ErrExternalTool, "generating_auto_subtitles", "generate",
					fmt.Sprintf("language %q", displayLanguage(lang)), err)
			}
			s.logger.Warn("subtitle generation failed, continuing without track",
				logging.String("language", displayLanguage(lang)),
				logging.Error(err))
			continue
		}
		prepared = append(prepared, track)
	}
	return prepared, nil
}

func (s *Service) generateOne(ctx context.Context, sourcePath, outputRoot, lang string) (PreparedTrack, error) {
	name := lang
	if name == "" {
		name = "auto"
	}
	relPath := filepath.Join(subtitleDir, fmt.Sprintf("%s-auto.vtt", name))
	outputPath := filepath.Join(outputRoot, relPath)

	result, err := s.generator.Generate(ctx, GenerateRequest{
		InputPath:  sourcePath,
		OutputPath: outputPath,
		Language:   lang,
	})
	if err != nil {
		return PreparedTrack{}, err
	}

	trackLang := lang
	if trackLang == "" {
		trackLang = result.Language
	}
	track := Normalize(Track{
		Language: trackLang,
		Kind:     KindSubtitles,
	})
	s.logger.Info("generated subtitle track",
		logging.String("language", track.Language),
		logging.Int("cue_count", result.CueCount),
		logging.Float64("duration_seconds", result.DurationSeconds))
	return PreparedTrack{Track: track, RelPath: filepath.ToSlash(relPath)}, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func writeCaptionFile(root, relPath string, data []byte) error {
	path := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func displayLanguage(lang string) string {
	if lang == "" {
		return "auto-detect"
	}
	return lang
}
