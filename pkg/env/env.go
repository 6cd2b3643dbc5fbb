// Package env reads process configuration from the environment and optional
// .env files, and builds the JSON logger every binary uses.
package env

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Files are the local env files Load looks for, later files overriding
// earlier ones.
var Files = []string{".env", ".env.local"}

// Load overlays any present env files onto the process environment and
// returns the names it loaded.
func Load(logger *slog.Logger) []string {
	var loaded []string
	for _, f := range Files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Overload(f); err != nil {
			if logger != nil {
				logger.Warn("env file not loaded", "file", f, "err", err)
			}
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}

// Or returns the value of key, or fallback when unset or empty.
func Or(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int returns key parsed as an int, or fallback.
func Int(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

// Float returns key parsed as a float64, or fallback.
func Float(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

// Bool returns key parsed as a bool, or fallback.
func Bool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// Duration returns key parsed by time.ParseDuration, or fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

// List splits key on commas, trimming blanks. An unset key yields fallback.
func List(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Level maps LOG_LEVEL to a slog level, defaulting to info.
func Level() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger on w tagged with service.
func NewLogger(w io.Writer, service string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level()})).With("service", service)
}
