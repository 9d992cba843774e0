package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/client/models"
	"github.com/google/uuid"
)

const maxResponseBytes = 64 << 10

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Password string `json:"password,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type uploadResponse struct {
	FileID     string    `json:"file_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	UploadData struct {
		URL    string            `json:"url"`
		Fields map[string]string `json:"fields"`
	} `json:"upload_data"`
}

type downloadRequest struct {
	FileID   string `json:"file_id"`
	Password string `json:"password,omitempty"`
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPClient) RequestUpload(ctx context.Context, filename, password string, size int64) (*models.UploadTicket, error) {
	var resp uploadResponse
	err := c.do(ctx, http.MethodPost, "/upload", uploadRequest{Filename: filename, Password: password, Size: size}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.FileID == "" || resp.UploadData.URL == "" {
		return nil, fmt.Errorf("incomplete upload response")
	}
	return &models.UploadTicket{
		FileID:    resp.FileID,
		ExpiresAt: resp.ExpiresAt,
		URL:       resp.UploadData.URL,
		Fields:    resp.UploadData.Fields,
	}, nil
}

func (c *HTTPClient) RequestDownload(ctx context.Context, fileID, password string) (string, error) {
	var resp downloadResponse
	if err := c.do(ctx, http.MethodPost, "/download", downloadRequest{FileID: fileID, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.DownloadURL == "" {
		return "", fmt.Errorf("incomplete download response")
	}
	return resp.DownloadURL, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
