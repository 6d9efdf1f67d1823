package config

import (
	"errors"
	"fmt"
	"strings"

	"spool/internal/renditions"
)

// SubtitleModes lists the accepted values for subtitles.mode.
var SubtitleModes = []string{"off", "manual", "auto", "hybrid"}

// Validate ensures the configuration is usable. Failures here abort the
// process before the worker loop starts.
func (c *Config) Validate() error {
	if err := c.validateControlPlane(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateControlPlane() error {
	if strings.TrimSpace(c.ControlPlane.BaseURL) == "" {
		return fmt.Errorf("control_plane.base_url is required. Set %s or edit the config file", EnvControlPlaneURL)
	}
	if !c.ControlPlane.DevBypassAuth && strings.TrimSpace(c.ControlPlane.APIKey) == "" {
		return fmt.Errorf("control_plane.api_key is required unless dev_bypass_auth is set. Set %s", EnvAPIKey)
	}
	if c.ControlPlane.RequestTimeout <= 0 {
		return errors.New("control_plane.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.RawBucket) == "" {
		return errors.New("storage.raw_bucket must be set")
	}
	if strings.TrimSpace(c.Storage.OutputBucket) == "" {
		return errors.New("storage.output_bucket must be set")
	}
	hasAccess := strings.TrimSpace(c.Storage.AccessKey) != ""
	hasSecret := strings.TrimSpace(c.Storage.SecretKey) != ""
	if hasAccess != hasSecret {
		return errors.New("storage.access_key and storage.secret_key must be set together")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	return renditions.ValidateLadder(c.Encoding.Renditions)
}

func (c *Config) validateSubtitles() error {
	mode := c.Subtitles.Mode
	valid := false
	for _, candidate := range SubtitleModes {
		if mode == candidate {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("subtitles.mode must be one of %s", strings.Join(SubtitleModes, ", "))
	}
	if (mode == "auto" || mode == "hybrid") && strings.TrimSpace(c.Subtitles.GeneratorScript) == "" {
		return errors.New("subtitles.generator_script must be set for auto or hybrid mode")
	}
	if c.Subtitles.BeamSize < 1 {
		return errors.New("subtitles.beam_size must be at least 1")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Concurrency < 1 {
		return errors.New("upload.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}
