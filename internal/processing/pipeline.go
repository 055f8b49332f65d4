// Package processing runs the visit workflow: audio normalization, job
// submission, status polling, and report generation. The whole sequence is
// synchronous and blocking; one workflow runs at a time per session.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naheedk999/docai/internal/audio"
	"github.com/naheedk999/docai/internal/report"
)

// Transcriber is the slice of the transcription client the pipeline needs.
type Transcriber interface {
	Submit(ctx context.Context, blob *audio.Blob, filename, language string) (string, error)
	Poll(ctx context.Context, jobName string, maxAttempts int, interval time.Duration) (string, error)
}

// Summarizer is the slice of the report client the pipeline needs.
type Summarizer interface {
	Request(ctx context.Context, transcript, language string, kind report.Kind) (*report.Report, error)
}

// ErrAudioTooLarge is returned before normalization when the recording
// exceeds the configured limit.
var ErrAudioTooLarge = errors.New("audio exceeds size limit")

// Options bound the workflow.
type Options struct {
	MaxAudioBytes int64
	MaxAttempts   int
	Interval      time.Duration
}

// Pipeline glues the workflow steps together.
type Pipeline struct {
	normalizer  audio.Normalizer
	transcriber Transcriber
	summarizer  Summarizer
	opts        Options
}

// New builds a Pipeline.
func New(normalizer audio.Normalizer, transcriber Transcriber, summarizer Summarizer, opts Options) *Pipeline {
	return &Pipeline{
		normalizer:  normalizer,
		transcriber: transcriber,
		summarizer:  summarizer,
		opts:        opts,
	}
}

// Result is everything one completed workflow produced.
type Result struct {
	JobName       string
	Transcript    string
	PatientReport *report.Report
	DoctorReport  *report.Report
}

// Run executes the full workflow for one recording. Any failure terminates
// the invocation; the typed error from the failing step is preserved in the
// chain so callers can inspect it with errors.Is and errors.As. Nothing is
// retried here except the poll cycle inside Poll itself.
func (p *Pipeline) Run(ctx context.Context, data []byte, filename, sourceExt, language string) (*Result, error) {
	if p.opts.MaxAudioBytes > 0 && int64(len(data)) > p.opts.MaxAudioBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrAudioTooLarge, len(data))
	}

	blob, err := p.normalizer.Normalize(ctx, data, sourceExt)
	if err != nil {
		// Submission must not proceed with unnormalized audio.
		return nil, err
	}

	jobName, err := p.transcriber.Submit(ctx, blob, filename, language)
	if err != nil {
		return nil, err
	}

	transcript, err := p.transcriber.Poll(ctx, jobName, p.opts.MaxAttempts, p.opts.Interval)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobName, err)
	}

	patientReport, err := p.summarizer.Request(ctx, transcript, language, report.KindPatient)
	if err != nil {
		return nil, fmt.Errorf("patient report: %w", err)
	}
	doctorReport, err := p.summarizer.Request(ctx, transcript, language, report.KindDoctor)
	if err != nil {
		return nil, fmt.Errorf("doctor report: %w", err)
	}

	return &Result{
		JobName:       jobName,
		Transcript:    transcript,
		PatientReport: patientReport,
		DoctorReport:  doctorReport,
	}, nil
}
