package config

import "spool/internal/renditions"

const (
	defaultWorkDir            = "~/.local/share/spool/work"
	defaultLogDir             = "~/.local/share/spool/logs"
	defaultRegion             = "us-east-1"
	defaultRawBucket          = "spool-raw"
	defaultOutputBucket       = "spool-processed"
	defaultRequestTimeout     = 30
	defaultPollInterval       = 5
	defaultErrorRetryInterval = 10
	defaultUploadConcurrency  = 4
	defaultSubtitleMode       = "off"
	defaultGeneratorScript    = "generate-subtitles.py"
	defaultWhisperModel       = "small"
	defaultWhisperDevice      = "cpu"
	defaultWhisperCompute     = "int8"
	defaultWhisperBeamSize    = 5
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultLadder() []renditions.Rendition {
	return []renditions.Rendition{
		{Name: "360p", Width: 640, Height: 360, Bitrate: "600k", MaxRate: "660k", BufSize: "900k", AudioBitrate: "96k"},
		{Name: "540p", Width: 960, Height: 540, Bitrate: "1200k", MaxRate: "1320k", BufSize: "1800k", AudioBitrate: "96k"},
		{Name: "720p", Width: 1280, Height: 720, Bitrate: "2500k", MaxRate: "2750k", BufSize: "3750k", AudioBitrate: "128k"},
		{Name: "1080p", Width: 1920, Height: 1080, Bitrate: "4500k", MaxRate: "5000k", BufSize: "7500k", AudioBitrate: "128k"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		ControlPlane: ControlPlane{
			RequestTimeout: defaultRequestTimeout,
		},
		Storage: Storage{
			Region:       defaultRegion,
			RawBucket:    defaultRawBucket,
			OutputBucket: defaultOutputBucket,
		},
		Encoding: Encoding{
			Renditions:    defaultLadder(),
			SeparateAudio: false,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Subtitles: Subtitles{
			Mode:            defaultSubtitleMode,
			GeneratorScript: defaultGeneratorScript,
			Model:           defaultWhisperModel,
			Device:          defaultWhisperDevice,
			ComputeType:     defaultWhisperCompute,
			BeamSize:        defaultWhisperBeamSize,
		},
		Upload: Upload{
			Concurrency: defaultUploadConcurrency,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
