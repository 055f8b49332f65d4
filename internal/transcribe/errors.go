package transcribe

import (
	"errors"
	"fmt"
)

// SubmissionStage names the step of job submission that failed.
type SubmissionStage string

const (
	StagePresign SubmissionStage = "presign"
	StageUpload  SubmissionStage = "upload"
	StageStart   SubmissionStage = "start"
)

// SubmissionError reports a failed submission, carrying the remote status
// and body for diagnostics.
type SubmissionError struct {
	Stage      SubmissionStage
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit transcription (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("submit transcription (%s): status %d: %s", e.Stage, e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Terminal poll failures.
var (
	ErrUnauthorized = errors.New("transcription: unauthorized")
	ErrJobNotFound  = errors.New("transcription: job not found")
	ErrTimeout      = errors.New("transcription: timed out waiting for job")
)

// TransportError reports an unexpected HTTP answer while polling.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transcription: status %d: %s", e.StatusCode, e.Body)
}

// JobFailedError reports that the remote job reached FAILED.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("transcription job failed: %s", e.Reason)
}
