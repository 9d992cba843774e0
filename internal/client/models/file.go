// Package models defines the values the client passes between the API
// client, the transfer service and the CLI.
package models

import "time"

// UploadTicket is the server's answer to an upload request: the file id to
// share and the presigned form to POST the content to.
type UploadTicket struct {
	FileID    string
	ExpiresAt time.Time
	URL       string
	Fields    map[string]string
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	FileID string
	Path   string
	Size   int64
}
