package config

import (
	"path/filepath"
	"time"
)

// Config holds runtime settings for the Formulus sync core.
//
// Fields:
//   - ServerURL: base URL of the Synkronus API.
//   - DataDir: directory for the local database, attachments and bundle.
//   - PullBatchSize: maximum records requested per pull page.
//   - RequestTimeout: per-request timeout applied by the API client.
type Config struct {
	ServerURL      string
	DataDir        string
	PullBatchSize  int
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DataDir = ".formulus"
	c.PullBatchSize = 100
	c.RequestTimeout = 30 * time.Second
}

// DatabasePath returns the SQLite file location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "formulus.db")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
