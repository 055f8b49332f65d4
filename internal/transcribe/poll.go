package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Remote job statuses.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

type statusResponse struct {
	Status     string `json:"status"`
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
}

// Poll queries job status until a terminal state or the attempt budget runs
// out. It issues at most maxAttempts requests and waits interval between
// consecutive attempts, so the wall-clock bound is roughly
// maxAttempts x interval. The wait honors ctx cancellation. At most one
// poll sequence may run per job.
func (c *Client) Poll(ctx context.Context, jobName string, maxAttempts int, interval time.Duration) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	endpoint := fmt.Sprintf("%s/get-transcription?job_name=%s", c.baseURL, url.QueryEscape(jobName))

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, interval); err != nil {
				return "", err
			}
		}
		status, body, err := c.getStatus(ctx, endpoint)
		if err != nil {
			return "", fmt.Errorf("poll transcription: %w", err)
		}
		switch status {
		case http.StatusUnauthorized:
			return "", ErrUnauthorized
		case http.StatusNotFound:
			return "", ErrJobNotFound
		case http.StatusAccepted:
			// Still in progress.
			continue
		case http.StatusOK:
			var st statusResponse
			if err := json.Unmarshal(body, &st); err != nil {
				return "", fmt.Errorf("decode status: %w", err)
			}
			switch st.Status {
			case StatusCompleted:
				// The transcript may legitimately be empty.
				return st.Transcript, nil
			case StatusFailed:
				reason := st.Error
				if reason == "" {
					reason = "unknown error"
				}
				return "", &JobFailedError{Reason: reason}
			default:
				continue
			}
		default:
			return "", &TransportError{StatusCode: status, Body: snippet(body)}
		}
	}
	return "", ErrTimeout
}

func (c *Client) getStatus(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
