package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every process-wide setting. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Port      int
	AuthToken string
	WorkDir   string

	ConvertBinary string
	PresetDir     string
	TextureDir    string
	OutputName    string

	DefaultMesh         string
	DefaultEncoderSpeed string
	ConvertTimeout      time.Duration

	MaxConcurrent  int
	RateLimitRPS   float64
	RateLimitBurst int

	DownloadTimeout time.Duration

	UploadURL     string
	UploadToken   string
	UploadTimeout time.Duration

	LogLevel string
}

// LoadConfig reads configuration from the environment, honoring a .env file
// when present. Numeric values that fail to parse abort startup.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AuthToken:           getEnv("AUTH_TOKEN", ""),
		WorkDir:             getEnv("WORK_DIR", os.TempDir()),
		ConvertBinary:       getEnv("CONVERT_BIN", "/app/convert.sh"),
		PresetDir:           getEnv("PRESET_DIR", "/usr/local/share/projectM/presets"),
		TextureDir:          getEnv("TEXTURE_DIR", "/usr/local/share/projectM/textures"),
		OutputName:          getEnv("OUTPUT_NAME", "output.mp4"),
		DefaultMesh:         getEnv("MESH", "320x240"),
		DefaultEncoderSpeed: getEnv("ENCODER_SPEED", "veryfast"),
		UploadURL:           getEnv("UPLOAD_URL", ""),
		UploadToken:         getEnv("UPLOAD_TOKEN", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8000); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = getEnvInt("MAX_CONCURRENT", 2); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.ConvertTimeout, err = getEnvSeconds("CONVERT_TIMEOUT_SECONDS", 10800); err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout, err = getEnvSeconds("DOWNLOAD_TIMEOUT_SECONDS", 120); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = getEnvSeconds("UPLOAD_TIMEOUT_SECONDS", 300); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func getEnvSeconds(key string, fallback float64) (time.Duration, error) {
	seconds, err := getEnvFloat(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
