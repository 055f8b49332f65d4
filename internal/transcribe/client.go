// Package transcribe drives the remote transcription service: job
// submission and status polling.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Variant selects the upload strategy. Deployments pick one; the service
// exposes both endpoint families.
type Variant string

const (
	// VariantPresigned uploads raw bytes to a one-time URL before starting
	// the job.
	VariantPresigned Variant = "presigned"
	// VariantInline base64-encodes the audio into the start request itself.
	VariantInline Variant = "inline"
)

// Client talks to the transcription endpoints. One client is scoped to a
// single session's bearer token.
type Client struct {
	baseURL    string
	token      string
	variant    Variant
	httpClient *http.Client
}

// NewClient creates a Client for the given API base URL and credential.
func NewClient(baseURL, token string, variant Variant) *Client {
	if variant == "" {
		variant = VariantPresigned
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		variant:    variant,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// postJSON sends an authenticated JSON POST and returns the status code and
// raw response body.
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
