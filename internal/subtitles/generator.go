package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// GenerateRequest describes one transcription run.
type GenerateRequest struct {
	InputPath  string
	OutputPath string
	MetaPath   string
	// Language forces the transcription language; empty lets the model detect.
	Language string
}

// GenerateResult is the metadata the generator reports on success.
type GenerateResult struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	DurationSeconds     float64 `json:"duration_seconds"`
	CueCount            int     `json:"cue_count"`
}

// Generator produces a WebVTT caption file from source media.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GeneratorConfig carries the model parameters passed to the external script.
type GeneratorConfig struct {
	Script      string
	Model       string
	Device      string
	ComputeType string
	BeamSize    int
}

// ScriptGenerator invokes the faster-whisper wrapper script as a subprocess.
type ScriptGenerator struct {
	cfg           GeneratorConfig
	commandRunner func(ctx context.Context, name string, args ...string) error
}

const pythonCommand = "python3"

// NewScriptGenerator creates a generator backed by the configured script.
func NewScriptGenerator(cfg GeneratorConfig) *ScriptGenerator {
	return &ScriptGenerator{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (g *ScriptGenerator) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	g.commandRunner = runner
}

// Generate runs the script and decodes its metadata output. A nonzero exit is
// surfaced verbatim alongside the captured process output.
func (g *ScriptGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var result GenerateResult
	if strings.TrimSpace(req.InputPath) == "" {
		return result, fmt.Errorf("generate subtitles: input path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return result, fmt.Errorf("generate subtitles: output path required")
	}
	metaPath := req.MetaPath
	if metaPath == "" {
		metaPath = strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".meta.json"
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return result, fmt.Errorf("generate subtitles: ensure output dir: %w", err)
	}

	args := g.buildArgs(req, metaPath)
	if err := g.run(ctx, pythonCommand, args...); err != nil {
		return result, fmt.Errorf("subtitle generator: %w", err)
	}

	meta, err := os.ReadFile(metaPath)
	if err != nil {
		return result, fmt.Errorf("generate subtitles: read metadata: %w", err)
	}
	if err := json.Unmarshal(meta, &result); err != nil {
		return result, fmt.Errorf("generate subtitles: decode metadata: %w", err)
	}
	if result.Language == "" {
		result.Language = UndeterminedLanguage
	}
	return result, nil
}

func (g *ScriptGenerator) buildArgs(req GenerateRequest, metaPath string) []string {
	args := []string{
		g.cfg.Script,
		"--input", req.InputPath,
		"--output", req.OutputPath,
		"--meta-output", metaPath,
		"--model", g.cfg.Model,
		"--device", g.cfg.Device,
		"--compute-type", g.cfg.ComputeType,
		"--beam-size", strconv.Itoa(maxInt(1, g.cfg.BeamSize)),
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	return args
}

func (g *ScriptGenerator) run(ctx context.Context, name string, args ...string) error {
	if g.commandRunner != nil {
		return g.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
