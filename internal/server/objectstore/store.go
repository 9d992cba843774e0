// Package objectstore issues pre-authorized upload and download descriptors
// for blobs and performs the few server-side operations the service needs
// (existence check and delete). The service never handles file bytes.
package objectstore

import (
	"context"
	"errors"
	"mime"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/server/models"
)

// ErrObjectNotFound is returned by Stat when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is what Stat reports about a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is implemented by every object storage backend.
type Store interface {
	// PresignUpload returns a form POST descriptor that lets the holder write
	// one object of 1..maxSize bytes under key until ttl elapses.
	PresignUpload(ctx context.Context, key string, maxSize int64, ttl time.Duration) (*models.UploadDescriptor, error)
	// PresignDownload returns a GET URL for key valid for ttl. The response
	// is served as an attachment named filename.
	PresignDownload(ctx context.Context, key, filename string, ttl time.Duration) (*models.DownloadDescriptor, error)
	// Stat returns ErrObjectNotFound when the object does not exist.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete removes the object. Deleting a missing object succeeds.
	Delete(ctx context.Context, key string) error
}

// contentDisposition builds an attachment header value. Non-ASCII names are
// emitted in the RFC 2231 extended form.
func contentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	v := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if v == "" {
		return "attachment"
	}
	return v
}
