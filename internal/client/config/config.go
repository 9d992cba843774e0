package config

import "time"

// Config holds runtime settings for the GophDrop CLI.
//
// Fields:
//   - ServerURL: base URL of the GophDrop HTTP API.
//   - Timeout: limit for each API call and each object-store transfer.
//   - OutputDir: where downloads are written unless -out is given.
//   - MaxFileBytes: largest file the client will upload or download.
type Config struct {
	ServerURL    string
	Timeout      time.Duration
	OutputDir    string
	MaxFileBytes int64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Timeout = 60 * time.Second
	c.OutputDir = "."
	c.MaxFileBytes = 10 << 20
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
