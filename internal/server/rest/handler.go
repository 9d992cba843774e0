package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/server/services"
)

type uploadRequest struct {
	Filename string `json:"filename"`
	Password string `json:"password,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type uploadData struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

type uploadResponse struct {
	FileID     string     `json:"file_id"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UploadData uploadData `json:"upload_data"`
}

type downloadRequest struct {
	FileID   string `json:"file_id"`
	Password string `json:"password,omitempty"`
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
}

func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if status, msg, ok := decodeJSON(r, &req); !ok {
		writeError(w, status, msg)
		return
	}

	ticket, err := s.vault.RequestUpload(r.Context(), services.UploadRequest{
		Filename: req.Filename,
		Password: req.Password,
		Size:     req.Size,
	})
	if err != nil {
		s.fail(w, r, "upload", err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:    ticket.FileID,
		ExpiresAt: ticket.ExpiresAt,
		UploadData: uploadData{
			URL:    ticket.Descriptor.URL,
			Fields: ticket.Descriptor.Fields,
		},
	})
}

func (s *HTTPServer) download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if status, msg, ok := decodeJSON(r, &req); !ok {
		writeError(w, status, msg)
		return
	}

	desc, err := s.vault.RequestDownload(r.Context(), services.DownloadRequest{
		FileID:   req.FileID,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, r, "download", err)
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{DownloadURL: desc.URL})
}

func (s *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Error(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), op+" failed", "error", err)
	}
	writeError(w, status, msg)
}

// decodeJSON reads exactly one JSON object from the body.
func decodeJSON(r *http.Request, dst any) (int, string, bool) {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body is too large (max %d bytes)", tooBig.Limit), false
		}
		return http.StatusBadRequest, "malformed JSON body", false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return http.StatusBadRequest, "malformed JSON body", false
	}
	return 0, "", true
}
