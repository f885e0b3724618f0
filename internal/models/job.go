package models

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	customErrors "PMRender/internal/models/errors"
)

// Built-in fallbacks for fields whose default is not operator-configurable.
const (
	DefaultVideoWidth     = 1920
	DefaultVideoHeight    = 1080
	DefaultFPS            = 60
	DefaultBitrateKbps    = 8000
	DefaultPresetDuration = 60
)

// JobConfig is the validated set of per-invocation rendering options. It is
// built once at the job boundary and never mutated afterwards.
type JobConfig struct {
	AudioData     []byte
	AudioURL      string
	AudioFilename string

	TimelineINI string
	TimelineURL string

	VideoWidth     int
	VideoHeight    int
	FPS            int
	BitrateKbps    int
	Mesh           string
	EncoderSpeed   string
	PresetDuration int

	Timeout time.Duration
}

// HasAudio reports whether any audio source was supplied.
func (c JobConfig) HasAudio() bool {
	return len(c.AudioData) > 0 || c.AudioURL != ""
}

// AudioSuffix derives the local audio file extension from the filename hint.
func (c JobConfig) AudioSuffix() string {
	name := strings.TrimSpace(c.AudioFilename)
	if idx := strings.LastIndex(name, "."); idx > 0 && idx < len(name)-1 {
		return name[idx:]
	}
	return ".mp3"
}

// ParseJobConfig coerces a loosely-typed input map into a JobConfig, starting
// from the supplied defaults. Unknown keys are ignored; a recognized key with
// an uncoercible value is an input error, never a silent fallback.
func ParseJobConfig(input map[string]any, defaults JobConfig) (JobConfig, error) {
	cfg := defaults

	if raw, ok := input["audio_b64"]; ok && raw != nil {
		encoded, err := coerceString(raw)
		if err != nil {
			return JobConfig{}, customErrors.Wrap(customErrors.KindInput, err, "invalid audio_b64")
		}
		if encoded != "" {
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return JobConfig{}, customErrors.Wrap(customErrors.KindInput, err, "failed to decode base64 audio payload")
			}
			cfg.AudioData = data
		}
	}

	var err error
	if cfg.AudioURL, err = stringField(input, "audio_url", cfg.AudioURL); err != nil {
		return JobConfig{}, err
	}
	if cfg.AudioFilename, err = stringField(input, "audio_filename", cfg.AudioFilename); err != nil {
		return JobConfig{}, err
	}
	if cfg.TimelineINI, err = stringField(input, "timeline_ini", cfg.TimelineINI); err != nil {
		return JobConfig{}, err
	}
	if cfg.TimelineURL, err = stringField(input, "timeline_url", cfg.TimelineURL); err != nil {
		return JobConfig{}, err
	}
	if cfg.Mesh, err = stringField(input, "mesh", cfg.Mesh); err != nil {
		return JobConfig{}, err
	}
	if cfg.EncoderSpeed, err = stringField(input, "encoder_speed", cfg.EncoderSpeed); err != nil {
		return JobConfig{}, err
	}

	if cfg.VideoWidth, err = intField(input, "video_width", cfg.VideoWidth); err != nil {
		return JobConfig{}, err
	}
	if cfg.VideoHeight, err = intField(input, "video_height", cfg.VideoHeight); err != nil {
		return JobConfig{}, err
	}
	if cfg.FPS, err = intField(input, "fps", cfg.FPS); err != nil {
		return JobConfig{}, err
	}
	if cfg.BitrateKbps, err = intField(input, "bitrate_kbps", cfg.BitrateKbps); err != nil {
		return JobConfig{}, err
	}
	if cfg.PresetDuration, err = intField(input, "preset_duration", cfg.PresetDuration); err != nil {
		return JobConfig{}, err
	}

	if raw, ok := input["timeout_sec"]; ok && raw != nil {
		seconds, err := coerceFloat(raw)
		if err != nil {
			return JobConfig{}, customErrors.Wrap(customErrors.KindInput, err, "invalid timeout_sec")
		}
		if seconds > 0 {
			cfg.Timeout = time.Duration(seconds * float64(time.Second))
		}
	}

	return cfg, nil
}

func stringField(input map[string]any, key, fallback string) (string, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	value, err := coerceString(raw)
	if err != nil {
		return "", customErrors.Wrap(customErrors.KindInput, err, "invalid %s", key)
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}

func intField(input map[string]any, key string, fallback int) (int, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	value, err := coerceInt(raw)
	if err != nil {
		return 0, customErrors.Wrap(customErrors.KindInput, err, "invalid %s", key)
	}
	return value, nil
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("expected string, got %T", raw)
	}
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		// JSON numbers arrive as float64; fractional parts truncate.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite number %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}
