package config

import (
	"encoding/json"
	"os"

	"github.com/formulus/formulus-go/internal/flagx"
	"github.com/formulus/formulus-go/internal/timex"
)

// jsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "30s" or as integer nanoseconds.
type jsonConfig struct {
	ServerURL      string         `json:"server_url"`
	DataDir        string         `json:"data_dir"`
	PullBatchSize  int            `json:"pull_batch_size"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJSON overlays cfg with values loaded from the JSON file named by the
// -c/-config flag. When no file is named the function is a no-op. Zero-value
// fields in the file leave the existing value untouched.
func parseJSON(cfg *Config) {
	path := flagx.JSONConfigFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	applyJSON(cfg, &jc)
}

func applyJSON(cfg *Config, jc *jsonConfig) {
	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.PullBatchSize > 0 {
		cfg.PullBatchSize = jc.PullBatchSize
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
