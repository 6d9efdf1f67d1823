package worker

import (
	"context"
	"time"

	"log/slog"

	"spool/internal/config"
	"spool/internal/controlplane"
	"spool/internal/logging"
)

// Processor runs one claimed job to completion or failure.
type Processor interface {
	Process(ctx context.Context, job *controlplane.Job) error
}

// Loop polls the control plane for jobs and hands each to the processor. One
// job at a time; horizontal scale comes from running more worker processes.
type Loop struct {
	api        ControlPlane
	processor  Processor
	poll       time.Duration
	errorRetry time.Duration
	logger     *slog.Logger
}

// NewLoop builds the polling loop around a processor.
func NewLoop(cfg *config.Config, api ControlPlane, processor Processor, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		api:        api,
		processor:  processor,
		poll:       time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetry: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		logger:     logging.NewComponentLogger(logger, "loop"),
	}
}

// Run polls until ctx is cancelled. Shutdown is cooperative: cancellation is
// observed between iterations only, never mid-job. Claim failures and job
// failures are contained; nothing below this loop terminates it.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("worker loop started",
		logging.Duration("poll_interval", l.poll),
		logging.Duration("error_retry_interval", l.errorRetry),
	)
	for {
		if ctx.Err() != nil {
			l.logger.Info("worker loop stopped")
			return nil
		}
		job, err := l.api.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.logger.Error("claim failed", logging.Error(err))
			l.sleep(ctx, l.errorRetry)
			continue
		}
		if job == nil {
			l.sleep(ctx, l.poll)
			continue
		}
		if err := l.processor.Process(ctx, job); err != nil {
			// Already reported to the control plane; contain it here.
			l.logger.Warn("job processing failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
		}
	}
}

// sleep waits for the given interval or until shutdown, whichever first.
func (l *Loop) sleep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
