package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/flagx"
)

// GlobalFlags lists the flags the config layer owns, with and without a
// value. The CLI skips them when looking for the subcommand.
var GlobalFlags = []string{"-s", "-t", "-d", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   base URL of the GophDrop server
//	-t int      per-request timeout in seconds
//	-d string   directory for downloaded files
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with subcommand flags.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-t", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the server")
	timeout := fs.Int("t", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.OutputDir, "d", cfg.OutputDir, "directory for downloaded files")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
}
