// Package transport holds the HTTP plumbing shared by the embedding and
// rerank providers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const maxErrorBody = 512

// NewClient returns an http.Client whose dial is bounded by connectTimeout
// and whose whole round trip is bounded by requestTimeout. Zero disables
// either bound.
func NewClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext

	return &http.Client{
		Transport: tr,
		Timeout:   requestTimeout,
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// PostJSON marshals payload, posts it to url and decodes the response into
// out. token, when set, is sent as a bearer token.
func PostJSON(ctx context.Context, client *http.Client, url, token string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := string(body)
		if len(preview) > maxErrorBody {
			preview = preview[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: preview}
	}

	if err := json.Unmarshal(body, out); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return fmt.Errorf("failed to parse response (body: %s): %w", preview, err)
	}
	return nil
}
