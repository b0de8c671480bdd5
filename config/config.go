// Package config reads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alfajr/tailorbook/tailor"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	DBPath   string
	HTTPAddr string

	MinPhoneLength int
	SaveDelay      time.Duration

	BackupInterval  time.Duration
	BackupCheck     time.Duration
	BackupRetention int

	SyncMaxAttempts int
	ProbeURL        string
	ProbeInterval   time.Duration

	LogLevel       string
	AllowedOrigins []string
}

// Load reads a .env file when present, then builds Config from the environment.
func Load() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds Config with defaults, overridden by environment variables.
func FromEnv() Config {
	return Config{
		DBPath:          envOrDefault("TAILOR_DB_PATH", "tailorbook.db"),
		HTTPAddr:        envOrDefault("TAILOR_HTTP_ADDR", ":8080"),
		MinPhoneLength:  envInt("TAILOR_MIN_PHONE_LENGTH", tailor.DefaultMinPhoneLength),
		SaveDelay:       envDuration("TAILOR_SAVE_DELAY", tailor.DefaultSaveDelay),
		BackupInterval:  envDuration("TAILOR_BACKUP_INTERVAL", 24*time.Hour),
		BackupCheck:     envDuration("TAILOR_BACKUP_CHECK", time.Hour),
		BackupRetention: envInt("TAILOR_BACKUP_RETENTION", 30),
		SyncMaxAttempts: envInt("TAILOR_SYNC_MAX_ATTEMPTS", tailor.DefaultMaxAttempts),
		ProbeURL:        envOrDefault("TAILOR_PROBE_URL", ""),
		ProbeInterval:   envDuration("TAILOR_PROBE_INTERVAL", 30*time.Second),
		LogLevel:        envOrDefault("TAILOR_LOG_LEVEL", "info"),
		AllowedOrigins:  envList("TAILOR_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

// envDuration accepts Go durations ("90s", "24h") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
