// Package models defines server-side data models persisted in the metadata
// store and returned by the vault service.
package models

import "time"

// Status is the lifecycle state of a FileRecord.
type Status string

const (
	StatusPendingUpload Status = "pending_upload"
	StatusAvailable     Status = "available"
	StatusConsumed      Status = "consumed"
	StatusExpired       Status = "expired"
)

// FileRecord describes one uploaded file. The bytes live in object storage
// under StorageKey; this record is the single source of truth for whether
// they may still be retrieved.
type FileRecord struct {
	// FileID is the unguessable external handle.
	FileID string
	// StorageKey is the object-storage key of the blob.
	StorageKey string
	// Filename is the sanitized display name supplied at upload time.
	Filename string
	// PasswordHash is the encoded salted hash, empty when no passphrase was set.
	PasswordHash string
	// Size is the confirmed object size in bytes, 0 until confirmed.
	Size int64
	// Attempts counts passphrase verifications started against the record.
	Attempts int

	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is past its retention window at now.
// Expiry is evaluated on every read, independent of the sweeper.
func (r *FileRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HasPassword reports whether retrieval requires a passphrase.
func (r *FileRecord) HasPassword() bool {
	return r.PasswordHash != ""
}

// UploadDescriptor is a pre-authorized multipart form POST. The caller sends
// Fields plus the file content under the "file" part to URL.
type UploadDescriptor struct {
	URL    string
	Fields map[string]string
}

// DownloadDescriptor is a pre-authorized, short-lived GET URL.
type DownloadDescriptor struct {
	URL string
}

// UploadTicket is the result of a successful upload request.
type UploadTicket struct {
	FileID     string
	ExpiresAt  time.Time
	Descriptor *UploadDescriptor
}
