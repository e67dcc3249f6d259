// Package config loads daemon settings from the environment, with an
// optional .env file discovered by walking up from the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the daemon and its clients read.
type Config struct {
	SocketPath string
	DBPath     string

	DefaultModel string
	CorpusPath   string // optional override for the built-in corpus

	RemoteBaseURL string // when set, remote models are registered
	RemoteModelID string

	SessionTTL       time.Duration
	SweepInterval    time.Duration
	InferenceTimeout time.Duration
	Workers          int
}

// Load reads configuration from the environment. Every value has a
// working default, so a bare environment yields a usable config.
func Load() (*Config, error) {
	_ = loadEnvFile()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	base := filepath.Join(home, ".tokenwheel")

	cfg := &Config{
		SocketPath:       getenv("WHEEL_SOCKET", filepath.Join(base, "wheeld.sock")),
		DBPath:           getenv("WHEEL_DB", filepath.Join(base, "archive.sqlite")),
		DefaultModel:     getenv("WHEEL_DEFAULT_MODEL", "bytegram"),
		CorpusPath:       os.Getenv("WHEEL_CORPUS"),
		RemoteBaseURL:    os.Getenv("WHEEL_REMOTE_URL"),
		RemoteModelID:    getenv("WHEEL_REMOTE_MODEL", "remote"),
		SessionTTL:       time.Hour,
		SweepInterval:    5 * time.Minute,
		InferenceTimeout: 30 * time.Second,
		Workers:          2,
	}

	if cfg.SessionTTL, err = getduration("WHEEL_SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getduration("WHEEL_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.InferenceTimeout, err = getduration("WHEEL_INFER_TIMEOUT", cfg.InferenceTimeout); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getint("WHEEL_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WHEEL_WORKERS must be at least 1, got %d", cfg.Workers)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// loadEnvFile walks up from the working directory looking for a .env
// file, up to five levels.
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}
