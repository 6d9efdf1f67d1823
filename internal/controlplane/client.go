// Package controlplane implements the REST client the worker uses to claim
// jobs and report their outcomes.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"spool/internal/logging"
	"spool/internal/services"
)

const apiKeyHeader = "X-API-Key"

// Options configures the client.
type Options struct {
	BaseURL       string
	APIKey        string
	WorkerID      string
	DevBypassAuth bool
	Timeout       time.Duration
}

// Client talks to the control-plane job API. It is stateless and safe to
// reuse across jobs.
type Client struct {
	baseURL   string
	apiKey    string
	workerID  string
	devBypass bool
	http      *http.Client
	logger    *slog.Logger
}

// New builds a client. A zero timeout defaults to 30 seconds.
func New(opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:    strings.TrimSpace(opts.APIKey),
		workerID:  strings.TrimSpace(opts.WorkerID),
		devBypass: opts.DevBypassAuth,
		http:      &http.Client{Timeout: timeout},
		logger:    logging.NewComponentLogger(logger, "controlplane"),
	}
}

type claimRequest struct {
	WorkerID string `json:"worker_id"`
}

// Claim asks the control plane for the next queued job. A nil job with a nil
// error means the queue is empty.
func (c *Client) Claim(ctx context.Context) (*Job, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/api/v1/jobs/claim", claimRequest{WorkerID: c.workerID})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(body) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "claim", "decode job", err)
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, nil
	}
	return &job, nil
}

type progressRequest struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// Progress reports a stage checkpoint. Failures are logged and swallowed; a
// lost progress update never fails a job.
func (c *Client) Progress(ctx context.Context, jobID, stage, message string) {
	path := fmt.Sprintf("/api/v1/jobs/%s/progress", jobID)
	if _, _, err := c.do(ctx, http.MethodPost, path, progressRequest{Stage: stage, Message: message}); err != nil {
		c.logger.Warn("progress report failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldStage, stage),
			logging.Error(err),
		)
	}
}

// CompletionReport is the final output record for a successful job.
type CompletionReport struct {
	ManifestURL     string            `json:"manifest_url"`
	RenditionURLs   map[string]string `json:"rendition_urls"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	SubtitleTracks  []SubtitleTrack   `json:"subtitle_tracks,omitempty"`
}

// Complete marks the job finished and hands ownership back to the control
// plane.
func (c *Client) Complete(ctx context.Context, jobID string, report CompletionReport) error {
	path := fmt.Sprintf("/api/v1/jobs/%s/complete", jobID)
	_, _, err := c.do(ctx, http.MethodPost, path, report)
	return err
}

type failRequest struct {
	ErrorMessage string `json:"error_message"`
}

// Fail marks the job failed with a human-readable message.
func (c *Client) Fail(ctx context.Context, jobID, message string) error {
	path := fmt.Sprintf("/api/v1/jobs/%s/fail", jobID)
	_, _, err := c.do(ctx, http.MethodPost, path, failRequest{ErrorMessage: message})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if !c.devBypass {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "", "controlplane", method+" "+path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, services.Wrap(services.ErrTransient, "", "controlplane", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(raw))
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return nil, resp.StatusCode, services.Wrap(services.ErrTransient, "", "controlplane",
			fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, detail), nil)
	}
	return raw, resp.StatusCode, nil
}
