package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"spool/internal/renditions"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// ControlPlane contains configuration for the job-queue API.
type ControlPlane struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	WorkerID       string `toml:"worker_id"`
	DevBypassAuth  bool   `toml:"dev_bypass_auth"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Storage contains configuration for the S3-compatible object store.
type Storage struct {
	Endpoint     string `toml:"endpoint"`
	Region       string `toml:"region"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	RawBucket    string `toml:"raw_bucket"`
	OutputBucket string `toml:"output_bucket"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// Encoding contains the rendition ladder and audio muxing policy.
type Encoding struct {
	Renditions    []renditions.Rendition `toml:"renditions"`
	SeparateAudio bool                   `toml:"separate_audio"`
	FFmpegBinary  string                 `toml:"ffmpeg_binary"`
	FFprobeBinary string                 `toml:"ffprobe_binary"`
}

// Subtitles contains configuration for subtitle reconciliation and generation.
type Subtitles struct {
	Mode            string   `toml:"mode"`
	Languages       []string `toml:"languages"`
	Required        bool     `toml:"required"`
	GeneratorScript string   `toml:"generator_script"`
	Model           string   `toml:"model"`
	Device          string   `toml:"device"`
	ComputeType     string   `toml:"compute_type"`
	BeamSize        int      `toml:"beam_size"`
}

// Upload contains configuration for the output upload pipeline.
type Upload struct {
	Concurrency int    `toml:"concurrency"`
	CDNBaseURL  string `toml:"cdn_base_url"`
}

// Workflow contains worker loop timing configuration, in seconds.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the worker.
//
// Configuration sections by subsystem:
//   - Paths: working and log directories
//   - ControlPlane: claim/progress/complete/fail API endpoint and auth
//   - Storage: S3-compatible buckets for raw sources and processed output
//   - Encoding: rendition ladder and ffmpeg settings
//   - Subtitles: reconciliation mode and generator parameters
//   - Upload: pipeline concurrency and public CDN base
//   - Workflow: polling cadence
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	ControlPlane ControlPlane `toml:"control_plane"`
	Storage      Storage      `toml:"storage"`
	Encoding     Encoding     `toml:"encoding"`
	Subtitles    Subtitles    `toml:"subtitles"`
	Upload       Upload       `toml:"upload"`
	Workflow     Workflow     `toml:"workflow"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/spool/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after decoding, and the returned config has all path
// fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spool.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Subtitles.GeneratorScript != "" {
		if c.Subtitles.GeneratorScript, err = expandPath(c.Subtitles.GeneratorScript); err != nil {
			return err
		}
	}
	c.ControlPlane.BaseURL = strings.TrimRight(strings.TrimSpace(c.ControlPlane.BaseURL), "/")
	c.Upload.CDNBaseURL = strings.TrimRight(strings.TrimSpace(c.Upload.CDNBaseURL), "/")
	c.Subtitles.Mode = strings.ToLower(strings.TrimSpace(c.Subtitles.Mode))
	for i, lang := range c.Subtitles.Languages {
		c.Subtitles.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
	return nil
}

// EnsureDirectories creates required directories for worker operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
