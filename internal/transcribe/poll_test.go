package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// pollServer serves a scripted sequence of responses for a single job and
// counts the requests it saw.
type pollServer struct {
	t        *testing.T
	jobName  string
	script   []func(w http.ResponseWriter)
	requests int
}

func (p *pollServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/get-transcription" {
		p.t.Errorf("unexpected path %s", r.URL.Path)
	}
	if got := r.URL.Query().Get("job_name"); got != p.jobName {
		p.t.Errorf("unexpected job name %q", got)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
		p.t.Errorf("unexpected authorization header %q", got)
	}
	idx := p.requests
	p.requests++
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.script[idx](w)
}

func inProgress202(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
}

func statusBody(status, transcript, errMsg string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(statusResponse{Status: status, Transcript: transcript, Error: errMsg})
	}
}

func newPollClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "tok-1", VariantPresigned)
}

func TestPollCompletesAfterInProgress(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-123", script: []func(http.ResponseWriter){
		inProgress202,
		inProgress202,
		statusBody(StatusCompleted, "Patient reports knee pain.", ""),
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	transcript, err := newPollClient(srv).Poll(context.Background(), "job-123", 10, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if transcript != "Patient reports knee pain." {
		t.Fatalf("unexpected transcript %q", transcript)
	}
	if ps.requests != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", ps.requests)
	}
}

func TestPollInProgressBody(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		statusBody(StatusInProgress, "", ""),
		statusBody(StatusCompleted, "done", ""),
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	transcript, err := newPollClient(srv).Poll(context.Background(), "job-1", 5, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if transcript != "done" || ps.requests != 2 {
		t.Fatalf("transcript %q after %d requests", transcript, ps.requests)
	}
}

func TestPollEmptyTranscript(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		statusBody(StatusCompleted, "", ""),
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	transcript, err := newPollClient(srv).Poll(context.Background(), "job-1", 5, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected empty transcript, got %q", transcript)
	}
}

func TestPollNotFoundFailsImmediately(t *testing.T) {
	ps := &pollServer{t: t, jobName: "gone", script: []func(http.ResponseWriter){
		func(w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) },
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	start := time.Now()
	_, err := newPollClient(srv).Poll(context.Background(), "gone", 10, time.Second)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if ps.requests != 1 {
		t.Fatalf("expected a single request, got %d", ps.requests)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("poll slept before the first terminal answer (%v)", elapsed)
	}
}

func TestPollUnauthorized(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnauthorized) },
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	_, err := newPollClient(srv).Poll(context.Background(), "job-1", 10, time.Millisecond)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPollJobFailed(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		inProgress202,
		statusBody(StatusFailed, "partial text must not leak", "audio unreadable"),
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	transcript, err := newPollClient(srv).Poll(context.Background(), "job-1", 10, time.Millisecond)
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
	if failed.Reason != "audio unreadable" {
		t.Fatalf("unexpected reason %q", failed.Reason)
	}
	if transcript != "" {
		t.Fatalf("failed job must not return a transcript, got %q", transcript)
	}
}

func TestPollTransportError(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		func(w http.ResponseWriter) { http.Error(w, "internal", http.StatusInternalServerError) },
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	_, err := newPollClient(srv).Poll(context.Background(), "job-1", 10, time.Millisecond)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", transport.StatusCode)
	}
}

func TestPollTimeoutAfterExactBudget(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		inProgress202,
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	_, err := newPollClient(srv).Poll(context.Background(), "job-1", 4, time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if ps.requests != 4 {
		t.Fatalf("expected exactly 4 requests, got %d", ps.requests)
	}
}

func TestPollHonorsContextCancel(t *testing.T) {
	ps := &pollServer{t: t, jobName: "job-1", script: []func(http.ResponseWriter){
		inProgress202,
	}}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := newPollClient(srv).Poll(ctx, "job-1", 1000, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
