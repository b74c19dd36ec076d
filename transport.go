// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"
)

// GetOptions are the optional conditions of a Get request.
type GetOptions struct {
	// ETag, if non-empty, is sent as If-None-Match so that the peer may reply
	// with 304 Not Modified when the object has not changed.
	ETag string

	// Wait, if positive, is sent as "Prefer: wait=<seconds>", asking the peer
	// to hold the request open until the object changes or the time elapses.
	Wait time.Duration
}

// A Transport performs the requests a client makes to remote objects.
//
// A successful response body must be a JSON object. Implementations should
// add a _statusCode key to the result reporting the HTTP status, and report a
// *HTTPError for statuses outside the 2xx and 3xx ranges. A 304 response may be
// reported either as an object with _statusCode 304 or as an *HTTPError with
// code 304.
type Transport interface {
	// Get fetches the object at url.
	Get(ctx context.Context, url string, opts GetOptions) (*Object, error)

	// Post sends body encoded as JSON to url and returns the response.
	Post(ctx context.Context, url string, body any) (*Object, error)
}

// HTTPTransport is a Transport that uses an HTTP client.
type HTTPTransport struct {
	// Client is used to send requests. If nil, http.DefaultClient is used.
	// Requests that hold for a long poll take as long as the Prefer wait, so
	// the client timeout, if any, should be longer than that.
	Client *http.Client
}

// NewHTTPTransport returns a transport that sends requests with c.
func NewHTTPTransport(c *http.Client) *HTTPTransport { return &HTTPTransport{Client: c} }

var defaultTransport = NewHTTPTransport(nil)

// DefaultTransport returns the transport used when none is specified.
func DefaultTransport() Transport { return defaultTransport }

func (h *HTTPTransport) client() *http.Client {
	if h.Client == nil {
		return http.DefaultClient
	}
	return h.Client
}

// Get implements part of the Transport interface.
func (h *HTTPTransport) Get(ctx context.Context, url string, opts GetOptions) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}
	if opts.Wait > 0 {
		req.Header.Set("Prefer", "wait="+strconv.Itoa(int(opts.Wait/time.Second)))
	}
	return h.do(req)
}

// Post implements part of the Transport interface.
func (h *HTTPTransport) Post(ctx context.Context, url string, body any) (*Object, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *HTTPTransport) do(req *http.Request) (*Object, error) {
	rsp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case rsp.StatusCode == http.StatusNotModified:
		obj := NewObject()
		obj.Set(KeyStatusCode, rsp.StatusCode)
		return obj, nil
	case rsp.StatusCode < 200 || rsp.StatusCode >= 400:
		return nil, NewHTTPError(rsp.StatusCode, errorMessage(data), rsp.Header)
	}

	obj, err := decodeBody(data, rsp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	obj.Set(KeyStatusCode, rsp.StatusCode)
	return obj, nil
}

// decodeBody parses a response body as a JSON object. An empty body is an
// empty object. A body is treated as JSON if its content type says so or if it
// begins with "{".
func decodeBody(data []byte, contentType string) (*Object, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return NewObject(), nil
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "application/json" && data[0] != '{' {
		return nil, fmt.Errorf("%w: content type %q", ErrNotObject, contentType)
	}
	return ParseObject(data)
}

// errorMessage extracts the "message" field of an error response, or returns
// "" so that the status text is used instead.
func errorMessage(data []byte) string {
	obj, err := ParseObject(bytes.TrimSpace(data))
	if err != nil {
		return ""
	}
	return obj.String("message")
}
