package report

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

// Client posts transcripts to the summarization endpoints. One client is
// scoped to a single session's bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given API base URL and credential.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// Summaries for long visits can take a while to generate.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type summaryRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func endpointFor(kind Kind) (string, error) {
	switch kind {
	case KindPatient:
		return "/summary-patient", nil
	case KindDoctor:
		return "/summary-doctor", nil
	default:
		return "", fmt.Errorf("report: unknown kind %q", kind)
	}
}

// Request sends the transcript to the kind-specific endpoint and returns the
// decoded report.
func (c *Client) Request(ctx context.Context, transcript, language string, kind Kind) (*Report, error) {
	path, err := endpointFor(kind)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(summaryRequest{Text: transcript, Language: language})
	if err != nil {
		return nil, fmt.Errorf("marshal summary request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summary request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read summary response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: snippet(respBody)}
	}
	return ParseEnvelope(respBody)
}

func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
