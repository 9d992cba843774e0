// Package client talks to the GophDrop HTTP API.
//
// HTTPClient implements Client over JSON/HTTP. Server errors come back as
// *APIError, which matches ErrAccessDenied (403), ErrUnavailable (503) and
// ErrInvalid (400, 413) with errors.Is. Transport failures wrap
// ErrUnavailable.
package client
