// Package transcode plans and runs the ffmpeg pass that turns a source file
// into an HLS adaptive bitrate set.
package transcode

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"log/slog"

	"spool/internal/logging"
	"spool/internal/services"
)

// Transcoder runs a prepared plan to completion.
type Transcoder interface {
	Transcode(ctx context.Context, plan Plan) error
}

type commandRunner func(ctx context.Context, name string, args []string, stderr io.Writer) error

// FFmpeg executes plans by shelling out to the configured ffmpeg binary.
type FFmpeg struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewFFmpeg returns a runner for the given binary. An empty binary falls back
// to "ffmpeg" on PATH.
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "transcode"),
		run: func(ctx context.Context, name string, args []string, stderr io.Writer) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stderr = stderr
			return cmd.Run()
		},
	}
}

// WithCommandRunner replaces the subprocess runner. Used by tests.
func (f *FFmpeg) WithCommandRunner(run commandRunner) *FFmpeg {
	if run != nil {
		f.run = run
	}
	return f
}

// Transcode creates the per-rendition output directories and runs ffmpeg.
// ffmpeg's stderr is streamed line by line into the log at debug level; the
// final lines are retained so a failure carries the actual encoder complaint.
func (f *FFmpeg) Transcode(ctx context.Context, plan Plan) error {
	dirs := make([]string, 0, len(plan.Renditions)+1)
	for _, r := range plan.Renditions {
		dirs = append(dirs, r.Name)
	}
	if plan.SeparateAudio {
		dirs = append(dirs, "audio")
	}
	for _, name := range dirs {
		if err := os.MkdirAll(filepath.Join(plan.OutputDir, name), 0o755); err != nil {
			return services.Wrap(services.ErrExternalTool, "transcoding_hls", "ffmpeg", "create rendition directory", err)
		}
	}

	f.logger.Info("launching ffmpeg",
		logging.String("input", plan.InputPath),
		logging.Int("renditions", len(plan.Renditions)),
	)

	tail := newLogTail(f.logger)
	if err := f.run(ctx, f.binary, plan.Args, tail); err != nil {
		tail.Flush()
		message := "run ffmpeg"
		if last := tail.Last(); last != "" {
			message = "run ffmpeg: " + last
		}
		return services.Wrap(services.ErrExternalTool, "transcoding_hls", "ffmpeg", message, err)
	}
	tail.Flush()
	return nil
}

const logTailLines = 5

// logTail is an io.Writer that splits subprocess stderr into lines, logs each
// at debug level, and keeps the most recent lines for error reporting.
type logTail struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    strings.Builder
	lines  []string
}

func newLogTail(logger *slog.Logger) *logTail {
	return &logTail{logger: logger}
}

func (t *logTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	for {
		text := t.buf.String()
		idx := strings.IndexAny(text, "\r\n")
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(text[:idx])
		t.buf.Reset()
		t.buf.WriteString(text[idx+1:])
		if line == "" {
			continue
		}
		t.logger.Debug("ffmpeg", logging.String("line", line))
		t.lines = append(t.lines, line)
		if len(t.lines) > logTailLines {
			t.lines = t.lines[1:]
		}
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (t *logTail) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := strings.TrimSpace(t.buf.String())
	t.buf.Reset()
	if line == "" {
		return
	}
	t.logger.Debug("ffmpeg", logging.String("line", line))
	t.lines = append(t.lines, line)
	if len(t.lines) > logTailLines {
		t.lines = t.lines[1:]
	}
}

// Last returns the most recent stderr line seen, if any.
func (t *logTail) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return ""
	}
	return t.lines[len(t.lines)-1]
}
