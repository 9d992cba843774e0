package client

import (
	"context"

	"github.com/dmitrijs2005/gophdrop/internal/client/models"
)

type Client interface {
	Ping(ctx context.Context) error
	RequestUpload(ctx context.Context, filename, password string, size int64) (*models.UploadTicket, error)
	RequestDownload(ctx context.Context, fileID, password string) (string, error)
}
