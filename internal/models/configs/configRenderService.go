package configs

import "time"

// RenderServiceConfig carries process-wide rendering constants. All fields
// are read-only after startup.
type RenderServiceConfig struct {
	WorkDir       string
	ConvertBinary string
	PresetDir     string
	TextureDir    string
	OutputName    string
	MaxConcurrent int

	// Defaults applied to jobs that omit the matching input field.
	DefaultMesh         string
	DefaultEncoderSpeed string
	DefaultTimeout      time.Duration
}
