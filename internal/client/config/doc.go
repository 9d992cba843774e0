// Package config loads runtime configuration for the GophDrop CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the server
//	-t int      request timeout (seconds)
//	-d string   directory for downloaded files
//
// # JSON schema
//
//	{
//	  "server_url": "https://drop.example.com",
//	  "timeout": "30s",
//	  "output_dir": "./downloads",
//	  "max_file_bytes": 10485760
//	}
package config
