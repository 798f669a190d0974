// Package config loads runtime configuration from the environment.
// An optional .env file in the working directory is read first; variables
// already set in the process environment win over it.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
)

// Config holds all runtime configuration.
type Config struct {
	// Backend connection
	APIURL      string
	APIToken    string
	HTTPTimeout time.Duration

	// Lyric synchronizer
	PollInterval time.Duration
	LeadOffset   float64 // seconds added to playback time before matching

	// Visualizer
	BarCount   int
	FrameRate  int    // animation ticks per second
	Visualizer string // variant name, see visual.ParseVariant

	// Logging
	LogLevel  slog.Level
	LogFormat string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIURL:       "http://localhost:8080",
		HTTPTimeout:  15 * time.Second,
		PollInterval: 5 * time.Second,
		LeadOffset:   domain.DefaultLeadOffset,
		BarCount:     5,
		FrameRate:    60,
		Visualizer:   "bars",
		LogLevel:     slog.LevelInfo,
		LogFormat:    "text",
	}
}

// Load reads the optional .env file and then the environment.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are ignored.
func LoadFiles(paths ...string) (Config, error) {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, domain.NewServiceError("config", "load", "failed to read "+p, err)
		}
	}

	d := Default()
	cfg := Config{
		APIURL:       strings.TrimRight(envStr("BEATSTAGE_API_URL", d.APIURL), "/"),
		APIToken:     envStr("BEATSTAGE_API_TOKEN", d.APIToken),
		HTTPTimeout:  envDuration("BEATSTAGE_HTTP_TIMEOUT", d.HTTPTimeout),
		PollInterval: envDuration("BEATSTAGE_POLL_INTERVAL", d.PollInterval),
		LeadOffset:   envFloat("BEATSTAGE_LEAD_OFFSET", d.LeadOffset),
		BarCount:     envInt("BEATSTAGE_BAR_COUNT", d.BarCount),
		FrameRate:    envInt("BEATSTAGE_FRAME_RATE", d.FrameRate),
		Visualizer:   envStr("BEATSTAGE_VISUALIZER", d.Visualizer),
		LogLevel:     logger.ParseLevel(os.Getenv("BEATSTAGE_LOG_LEVEL"), d.LogLevel),
		LogFormat:    envStr("BEATSTAGE_LOG_FORMAT", d.LogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return domain.NewValidationError("BEATSTAGE_API_URL", c.APIURL, "must be an absolute URL")
	}
	if c.HTTPTimeout <= 0 {
		return domain.NewValidationError("BEATSTAGE_HTTP_TIMEOUT", c.HTTPTimeout, "must be positive")
	}
	if c.PollInterval <= 0 {
		return domain.NewValidationError("BEATSTAGE_POLL_INTERVAL", c.PollInterval, "must be positive")
	}
	if c.BarCount < 1 {
		return &domain.ValidationError{
			Field:   "BEATSTAGE_BAR_COUNT",
			Value:   c.BarCount,
			Message: "must be at least 1",
			Err:     domain.ErrInvalidBarCount,
		}
	}
	if c.FrameRate < 1 || c.FrameRate > 240 {
		return domain.NewValidationError("BEATSTAGE_FRAME_RATE", c.FrameRate, "must be between 1 and 240")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return domain.NewValidationError("BEATSTAGE_LOG_FORMAT", c.LogFormat, "must be text or json")
	}
	return nil
}

// FrameInterval returns the time between animation ticks.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// Logger returns the logger configuration derived from this config.
func (c Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("5s") or plain seconds ("5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
