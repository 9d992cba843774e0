// Package netx holds the raw HTTP transfers the client makes directly
// against object storage: the multipart form upload and the one-shot
// download.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
)

// FileField is the form field that carries the file content. S3 requires it
// to come after every policy field.
const FileField = "file"

// ErrTooLarge is returned by Fetch when the body exceeds the allowed size.
var ErrTooLarge = errors.New("response body too large")

// PostForm uploads content to a presigned POST url as multipart/form-data
// with the given fields followed by the file part.
func PostForm(ctx context.Context, client *http.Client, url string, fields map[string]string, filename string, content io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, fields, filename, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

func writeForm(mw *multipart.Writer, fields map[string]string, filename string, content io.Reader) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(FileField, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// Fetch GETs url and copies at most maxBytes of the body to w. It returns
// the filename from the Content-Disposition header, if any.
func Fetch(ctx context.Context, client *http.Client, url string, w io.Writer, maxBytes int64) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", n, err
	}
	if n > maxBytes {
		return "", n, ErrTooLarge
	}

	return DispositionFilename(resp.Header.Get("Content-Disposition")), n, nil
}

// DispositionFilename extracts the filename parameter from a
// Content-Disposition value, or "" when there is none.
func DispositionFilename(v string) string {
	if v == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return params["filename"]
}
