package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophdrop/internal/client/client"
	"github.com/dmitrijs2005/gophdrop/internal/client/config"
	"github.com/dmitrijs2005/gophdrop/internal/client/services"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

type App struct {
	config   *config.Config
	transfer services.TransferService
	reader   *bufio.Reader
	out      io.Writer
	errOut   io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	hc := &http.Client{Timeout: c.Timeout}
	api := client.NewHTTPClient(c.ServerURL, hc)
	ts := services.NewTransferService(api, hc, c.MaxFileBytes)

	return &App{
		config:   c,
		transfer: ts,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		errOut:   os.Stderr,
	}, nil
}

// Run executes the subcommand found in args (usually os.Args[1:]) and
// returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd, rest := splitCommand(args)

	var err error
	switch cmd {
	case "upload":
		err = a.Upload(ctx, rest)
	case "download":
		err = a.Download(ctx, rest)
	case "", "help", "-h", "--help":
		a.usage()
		if cmd == "" {
			return ExitUsage
		}
		return ExitOK
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n", cmd)
		a.usage()
		return ExitUsage
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(a.errOut, err)
			return ExitUsage
		}
		fmt.Fprintln(a.errOut, "error:", err)
		return ExitError
	}
	return ExitOK
}

func (a *App) usage() {
	fmt.Fprint(a.errOut, `Usage: gophdrop [-s server] [-t seconds] [-d dir] [-c config.json] <command> [options]

Commands:
  upload [-no-pin] <path>               upload a file, prints its file id
  download [-no-pin] [-out path] [-url] [file_id]
                                        download a file once; it is deleted on the server
`)
}

type usageError string

func (e usageError) Error() string { return string(e) }

// splitCommand skips the global flags owned by the config package and
// returns the first remaining argument as the command.
func splitCommand(args []string) (string, []string) {
	global := make(map[string]struct{}, len(config.GlobalFlags))
	for _, f := range config.GlobalFlags {
		global[f] = struct{}{}
		global["-"+f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, known := global[name]; known {
				continue
			}
		}
		if _, known := global[arg]; known {
			i++
			continue
		}
		return arg, args[i+1:]
	}
	return "", nil
}
