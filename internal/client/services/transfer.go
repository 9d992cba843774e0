// Package services implements the client's upload and download flows on
// top of the API client and direct object-store transfers.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophdrop/internal/client/client"
	"github.com/dmitrijs2005/gophdrop/internal/client/models"
	"github.com/dmitrijs2005/gophdrop/internal/filex"
	"github.com/dmitrijs2005/gophdrop/internal/netx"
)

var ErrFileTooLarge = errors.New("file is too large")

// DownloadOptions control where a download lands. With OutPath set the
// file is written exactly there; otherwise it goes into Dir under the name
// the server sends.
type DownloadOptions struct {
	OutPath string
	Dir     string
}

type TransferService interface {
	Upload(ctx context.Context, path, password string) (*models.UploadTicket, error)
	Download(ctx context.Context, fileID, password string, opts DownloadOptions) (*models.DownloadResult, error)
	DownloadURL(ctx context.Context, fileID, password string) (string, error)
}

type transferService struct {
	api     client.Client
	http    *http.Client
	maxSize int64
}

func NewTransferService(api client.Client, hc *http.Client, maxSize int64) TransferService {
	return &transferService{api: api, http: hc, maxSize: maxSize}
}

func (s *transferService) Upload(ctx context.Context, path, password string) (*models.UploadTicket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, fi.Size(), s.maxSize)
	}

	name := filepath.Base(path)
	ticket, err := s.api.RequestUpload(ctx, name, password, fi.Size())
	if err != nil {
		return nil, err
	}

	if err := netx.PostForm(ctx, s.http, ticket.URL, ticket.Fields, name, f); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	return ticket, nil
}

func (s *transferService) DownloadURL(ctx context.Context, fileID, password string) (string, error) {
	return s.api.RequestDownload(ctx, fileID, password)
}

// Download consumes the file on the server and writes it locally. An
// explicit OutPath that already exists is refused before the server is
// asked, since the file can only be fetched once.
func (s *transferService) Download(ctx context.Context, fileID, password string, opts DownloadOptions) (*models.DownloadResult, error) {
	if opts.OutPath != "" {
		if err := filex.CheckFree(opts.OutPath); err != nil {
			return nil, err
		}
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	url, err := s.api.RequestDownload(ctx, fileID, password)
	if err != nil {
		return nil, err
	}

	// The name is only known from the response, so stage into a temp file
	// next to the destination.
	tmp, err := os.CreateTemp(dir, ".gophdrop-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	name, n, err := netx.Fetch(ctx, s.http, url, tmp, s.maxSize)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("download from storage: %w", err)
	}

	var dst *os.File
	if opts.OutPath != "" {
		dst, err = filex.CreateNew(opts.OutPath)
	} else {
		if name == "" {
			name = fileID
		}
		dst, err = filex.CreateUnique(dir, name)
	}
	if err != nil {
		return nil, err
	}
	path := dst.Name()
	_ = dst.Close()

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &models.DownloadResult{FileID: fileID, Path: path, Size: n}, nil
}
