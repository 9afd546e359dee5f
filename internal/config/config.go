// Package config defines service configuration and its layered loading.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, verbose, info, warn, error, severe.
	LogLevel string `koanf:"log_level"`

	// Addr configures the metrics/health HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory import-job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the score-ID deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DataDir is the BadgerDB directory. Empty selects the in-memory store.
	DataDir string `koanf:"data_dir"`

	// CatalogPath points at the JSON song/chart catalog seeded at startup.
	// Empty skips seeding.
	CatalogPath string `koanf:"catalog_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Addr:        ":9090",
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU() * 2,
		DedupeSize:  50_000,
	}
}
