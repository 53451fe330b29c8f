package jsonrpc2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

var (
	ErrHTTPResponse = errors.New("http: response error")
	ErrHTTPNoJSON   = errors.New("http: response did not contain application/json")
)

// HTTPClientConnector is a [ClientConnector] POSTing each request to a URL.
//
// 204 No Content or an empty body is an empty reply. Other non-2xx statuses and non-JSON
// bodies fail with [ErrClientConnector]. It is safe for concurrent use.
type HTTPClientConnector struct {
	client *http.Client
	url    string
	// MaxBytes limits the reply body size. Zero disables it.
	MaxBytes int64
}

// NewHTTPClientConnector builds a new [*HTTPClientConnector] that sends requests to url.
// A nil client uses a new [http.Client].
func NewHTTPClientConnector(url string, client *http.Client) *HTTPClientConnector {
	if client == nil {
		client = new(http.Client)
	}

	return &HTTPClientConnector{url: url, client: client}
}

// Close closes any idle connections held by the underlying client.
func (h *HTTPClientConnector) Close() error {
	h.client.CloseIdleConnections()

	return nil
}

// SendRequest implements [ClientConnector].
func (h *HTTPClientConnector) SendRequest(ctx context.Context, request []byte) ([]byte, error) {
	reply, err := h.post(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
	}

	return reply, nil
}

func (h *HTTPClientConnector) post(ctx context.Context, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w (status: %s)", ErrHTTPResponse, resp.Status)
	}

	var body io.Reader = resp.Body
	if h.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, h.MaxBytes+1)
	}

	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("http: failed to read response body: %w", err)
	}

	if h.MaxBytes > 0 && int64(len(buf)) > h.MaxBytes {
		return nil, ErrJSONTooLarge
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mediaType != contentTypeJSON {
		return nil, fmt.Errorf("%w (status: %s)", ErrHTTPNoJSON, resp.Status)
	}

	return buf, nil
}
