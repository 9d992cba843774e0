package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/client/services"
)

// Upload sends one file and prints the id the recipient needs.
func (a *App) Upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	noPIN := fs.Bool("no-pin", false, "do not protect the file with a PIN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("usage: upload [-no-pin] <path>")
	}
	path := fs.Arg(0)

	var pin string
	if !*noPIN {
		var err error
		if pin, err = GetNewPIN(a.out); err != nil {
			return err
		}
	}

	ticket, err := a.transfer.Upload(ctx, path, pin)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Uploaded %s\n", path)
	fmt.Fprintf(a.out, "File ID: %s\n", ticket.FileID)
	if !ticket.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "Expires: %s\n", ticket.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(a.out, "Copy this ID. The file can be downloaded exactly once.")
	return nil
}

// Download fetches a file by id. With -url it only prints the one-time link.
func (a *App) Download(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	noPIN := fs.Bool("no-pin", false, "do not prompt for a PIN")
	out := fs.String("out", "", "write the file to this path (must not exist)")
	urlOnly := fs.Bool("url", false, "print the download link instead of fetching it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return usageError("usage: download [-no-pin] [-out path] [-url] [file_id]")
	}

	id := fs.Arg(0)
	if id == "" {
		var err error
		if id, err = GetSimpleText(a.reader, "File ID", a.out); err != nil {
			return err
		}
		if id == "" {
			return usageError("file id is required")
		}
	}

	var pin string
	if !*noPIN {
		var err error
		if pin, err = GetPassword(a.out, "PIN (empty for none): "); err != nil {
			return err
		}
	}

	if *urlOnly {
		url, err := a.transfer.DownloadURL(ctx, id, pin)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, url)
		return nil
	}

	res, err := a.transfer.Download(ctx, id, pin, services.DownloadOptions{OutPath: *out, Dir: a.config.OutputDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%d bytes)\n", res.Path, res.Size)
	return nil
}
