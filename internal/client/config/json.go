package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/flagx"
	"github.com/dmitrijs2005/gophdrop/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify the timeout either as a
// string like "30s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	Timeout      timex.Duration `json:"timeout"`
	OutputDir    string         `json:"output_dir"`
	MaxFileBytes int64          `json:"max_file_bytes"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Only fields present (non-zero) in the file are copied.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.Timeout.Duration != 0 {
		cfg.Timeout = time.Duration(jc.Timeout.Duration)
	}
	if jc.OutputDir != "" {
		cfg.OutputDir = jc.OutputDir
	}
	if jc.MaxFileBytes > 0 {
		cfg.MaxFileBytes = jc.MaxFileBytes
	}
}
