package config

import (
	"os"
	"strings"

	"spool/internal/renditions"
)

// Environment overrides applied after file decode. Secrets and deployment
// endpoints are expected to arrive this way in production.
const (
	EnvControlPlaneURL = "SPOOL_CONTROL_PLANE_URL"
	EnvAPIKey          = "SPOOL_API_KEY"
	EnvWorkerID        = "SPOOL_WORKER_ID"
	EnvS3Endpoint      = "SPOOL_S3_ENDPOINT"
	EnvS3AccessKey     = "SPOOL_S3_ACCESS_KEY"
	EnvS3SecretKey     = "SPOOL_S3_SECRET_KEY"
	EnvRawBucket       = "SPOOL_RAW_BUCKET"
	EnvOutputBucket    = "SPOOL_OUTPUT_BUCKET"
	EnvLadderJSON      = "SPOOL_LADDER_JSON"
	EnvSubtitleMode    = "SPOOL_SUBTITLE_MODE"
)

func (c *Config) applyEnvOverrides() error {
	applyString(EnvControlPlaneURL, &c.ControlPlane.BaseURL)
	applyString(EnvAPIKey, &c.ControlPlane.APIKey)
	applyString(EnvWorkerID, &c.ControlPlane.WorkerID)
	applyString(EnvS3Endpoint, &c.Storage.Endpoint)
	applyString(EnvS3AccessKey, &c.Storage.AccessKey)
	applyString(EnvS3SecretKey, &c.Storage.SecretKey)
	applyString(EnvRawBucket, &c.Storage.RawBucket)
	applyString(EnvOutputBucket, &c.Storage.OutputBucket)
	applyString(EnvSubtitleMode, &c.Subtitles.Mode)

	if raw := strings.TrimSpace(os.Getenv(EnvLadderJSON)); raw != "" {
		ladder, err := renditions.ParseLadderJSON(raw)
		if err != nil {
			return err
		}
		c.Encoding.Renditions = ladder
	}
	return nil
}

func applyString(key string, dest *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dest = value
	}
}
