// Package app wires configuration into a running worker. Both the daemon
// binary and the CLI run command share this bootstrap.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"spool/internal/config"
	"spool/internal/controlplane"
	"spool/internal/journal"
	"spool/internal/logging"
	"spool/internal/storage"
	"spool/internal/subtitles"
	"spool/internal/transcode"
	"spool/internal/upload"
	"spool/internal/worker"
)

// NewLogger builds the process logger from config: console output plus a log
// file under the configured log directory.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "spool.log"),
		},
	})
}

// Run starts the worker loop and blocks until ctx is cancelled or startup
// fails. A file lock under the log directory keeps a second worker from
// sharing the same working directories.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "spoold.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another worker already runs against %s", cfg.Paths.LogDir)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := journal.Open(cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	storageClient, err := storage.New(ctx, storage.Options{
		Endpoint:     cfg.Storage.Endpoint,
		Region:       cfg.Storage.Region,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return err
	}

	api := controlplane.New(controlplane.Options{
		BaseURL:       cfg.ControlPlane.BaseURL,
		APIKey:        cfg.ControlPlane.APIKey,
		WorkerID:      workerID(cfg),
		DevBypassAuth: cfg.ControlPlane.DevBypassAuth,
		Timeout:       time.Duration(cfg.ControlPlane.RequestTimeout) * time.Second,
	}, logger)

	mode, err := subtitles.ParseMode(cfg.Subtitles.Mode)
	if err != nil {
		return err
	}
	var generator subtitles.Generator
	if mode == subtitles.ModeAuto || mode == subtitles.ModeHybrid {
		generator = subtitles.NewScriptGenerator(subtitles.GeneratorConfig{
			Script:      cfg.Subtitles.GeneratorScript,
			Model:       cfg.Subtitles.Model,
			Device:      cfg.Subtitles.Device,
			ComputeType: cfg.Subtitles.ComputeType,
			BeamSize:    cfg.Subtitles.BeamSize,
		})
	}
	subtitleSvc := subtitles.NewService(subtitles.Options{
		Mode:      mode,
		Languages: cfg.Subtitles.Languages,
		Required:  cfg.Subtitles.Required,
	}, generator, logger)

	uploader := upload.NewPipeline(storageClient, cfg.Storage.OutputBucket, cfg.Upload.Concurrency, logger)
	transcoder := transcode.NewFFmpeg(cfg.Encoding.FFmpegBinary, logger)
	controller := worker.NewController(cfg, api, storageClient, uploader, transcoder, subtitleSvc, store, logger)

	loop := worker.NewLoop(cfg, api, controller, logger)
	return loop.Run(ctx)
}

// workerID resolves the identity used when claiming jobs: the configured id,
// or hostname plus a random suffix so parallel workers stay distinguishable.
func workerID(cfg *config.Config) string {
	if id := strings.TrimSpace(cfg.ControlPlane.WorkerID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "spool"
	}
	return host + "-" + uuid.NewString()[:8]
}
