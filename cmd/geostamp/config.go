package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds settings shared by every subcommand. Values come from flags,
// falling back to GEOSTAMP_* environment variables and a .env file.
type Config struct {
	APIKey      string
	MapsDir     string
	AssetsDir   string
	Backend     string
	JPEGQuality int
	LogLevel    string
}

func loadConfig() Config {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	return Config{
		APIKey:      getEnv("GEOSTAMP_API_KEY", ""),
		MapsDir:     getEnv("GEOSTAMP_MAPS_DIR", os.TempDir()),
		AssetsDir:   getEnv("GEOSTAMP_ASSETS_DIR", ""),
		Backend:     getEnv("GEOSTAMP_BACKEND", "native"),
		JPEGQuality: getEnvInt("GEOSTAMP_JPEG_QUALITY", 92),
		LogLevel:    getEnv("GEOSTAMP_LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality %d out of range 1-100", c.JPEGQuality))
	}
	switch strings.ToLower(c.Backend) {
	case "native", "xdraw":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (use native or xdraw)", c.Backend))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.AssetsDir != "" {
		if info, err := os.Stat(c.AssetsDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("assets dir %q is not a directory", c.AssetsDir))
		}
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", s)
	}
	return l, nil
}

func newLogger(cfg *Config) *slog.Logger {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(logger)
	return logger
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}
