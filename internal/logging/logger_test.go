package logging

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"spool/internal/services"
)

type captureWriter struct {
	lines []string
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.lines = append(w.lines, string(p))
	return len(p), nil
}

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	writer := &captureWriter{}
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(writer, levelVar))

	logger.With(String(FieldComponent, "worker")).Info("job claimed", String(FieldJobID, "job-1"))

	if len(writer.lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(writer.lines))
	}
	line := writer.lines[0]
	if !strings.Contains(line, "INFO worker: job claimed") {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.Contains(line, "job_id=job-1") {
		t.Fatalf("expected job_id attr in %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	writer := &captureWriter{}
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(writer, levelVar))

	logger.Error("stage failed", String("error_message", "no downloadable source"))

	if len(writer.lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(writer.lines))
	}
	if !strings.Contains(writer.lines[0], `error_message="no downloadable source"`) {
		t.Fatalf("expected quoted value in %q", writer.lines[0])
	}
}

func TestWithContextAddsFields(t *testing.T) {
	writer := &captureWriter{}
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(writer, levelVar))

	ctx := services.WithJobID(context.Background(), "job-9")
	ctx = services.WithStage(ctx, "finalizing")
	WithContext(ctx, logger).Info("stage started")

	line := writer.lines[0]
	for _, fragment := range []string{"job_id=job-9", "stage=finalizing"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
