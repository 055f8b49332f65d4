// Package worker consumes visit processing tasks: it fetches the uploaded
// recording, runs the transcription and summary workflow, renders both
// report PDFs, and records the outcome on the visit.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/naheedk999/docai/internal/audio"
	"github.com/naheedk999/docai/internal/config"
	pdfutil "github.com/naheedk999/docai/internal/pdf"
	"github.com/naheedk999/docai/internal/processing"
	"github.com/naheedk999/docai/internal/queue"
	"github.com/naheedk999/docai/internal/report"
	"github.com/naheedk999/docai/internal/transcribe"
	"github.com/naheedk999/docai/internal/visit"
)

// Archive is the slice of object storage the worker needs.
type Archive interface {
	DownloadAudio(ctx context.Context, objectKey string) ([]byte, error)
	UploadPDF(ctx context.Context, objectKey string, data []byte) error
}

// TokenSource yields a valid bearer token for the remote service.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Runner executes one visit workflow.
type Runner interface {
	Run(ctx context.Context, data []byte, filename, sourceExt, language string) (*processing.Result, error)
}

// Processor handles visit tasks pulled off the queue.
type Processor struct {
	cfg     *config.Config
	store   visit.Store
	archive Archive
	tokens  TokenSource

	// newPipeline builds the workflow for one token; replaced in tests.
	newPipeline func(token string) Runner
}

// NewProcessor constructs a Processor wired to the real workflow.
func NewProcessor(cfg *config.Config, store visit.Store, archive Archive, tokens TokenSource) *Processor {
	p := &Processor{cfg: cfg, store: store, archive: archive, tokens: tokens}
	p.newPipeline = func(token string) Runner {
		return processing.New(
			audio.NewFFmpegNormalizer(cfg.FFmpegPath, cfg.AudioBitrate),
			transcribe.NewClient(cfg.APIBaseURL, token, transcribe.Variant(cfg.UploadVariant)),
			report.NewClient(cfg.APIBaseURL, token),
			processing.Options{
				MaxAudioBytes: cfg.MaxAudioBytes,
				MaxAttempts:   cfg.PollMaxAttempts,
				Interval:      cfg.PollInterval,
			},
		)
	}
	return p
}

// Handler returns the task mux for this processor.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessVisitTask, p.HandleProcessVisit)
	return mux
}

// HandleProcessVisit runs the workflow for one queued visit. Any failure
// marks the visit failed; the task is not retried, the clinician re-submits
// the whole visit instead.
func (p *Processor) HandleProcessVisit(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal process payload: %w", err)
	}

	if err := p.process(ctx, payload); err != nil {
		log.Printf("visit %s: processing failed: %v", payload.VisitID, err)
		if merr := p.store.MarkFailed(ctx, payload.VisitID, err.Error()); merr != nil {
			log.Printf("visit %s: mark failed: %v", payload.VisitID, merr)
		}
		return err
	}
	return nil
}

func (p *Processor) process(ctx context.Context, payload queue.ProcessPayload) error {
	v, err := p.store.Get(ctx, payload.VisitID)
	if err != nil {
		return fmt.Errorf("load visit: %w", err)
	}
	if err := p.store.MarkProcessing(ctx, payload.VisitID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := p.archive.DownloadAudio(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch recording: %w", err)
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	res, err := p.newPipeline(token).Run(ctx, data, payload.FileName, filepath.Ext(payload.FileName), payload.Language)
	if err != nil {
		return err
	}

	info := pdfutil.VisitInfo{
		DoctorName:     p.cfg.DoctorName,
		Specialization: p.cfg.DoctorSpecialization,
		Contact:        p.cfg.DoctorContact,
		Email:          p.cfg.DoctorEmail,
		PatientName:    v.PatientName,
		PatientID:      v.PatientID,
		DateOfBirth:    v.PatientDOB,
		VisitDate:      v.CreatedAt.Format("2006-01-02"),
	}

	patientKey, err := p.exportPDF(ctx, payload.VisitID, info, res.PatientReport, payload.Language, report.KindPatient)
	if err != nil {
		return err
	}
	doctorKey, err := p.exportPDF(ctx, payload.VisitID, info, res.DoctorReport, payload.Language, report.KindDoctor)
	if err != nil {
		return err
	}

	done := visit.Completed{
		Transcript:    res.Transcript,
		PatientReport: res.PatientReport,
		DoctorReport:  res.DoctorReport,
		PatientPDFKey: patientKey,
		DoctorPDFKey:  doctorKey,
	}
	if err := p.store.MarkCompleted(ctx, payload.VisitID, done); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	log.Printf("visit %s: completed, job %s", payload.VisitID, res.JobName)
	return nil
}

func (p *Processor) exportPDF(ctx context.Context, visitID string, info pdfutil.VisitInfo, rep *report.Report, language string, kind report.Kind) (string, error) {
	doc, err := pdfutil.BuildReport(info, rep, language)
	if err != nil {
		return "", fmt.Errorf("render %s pdf: %w", kind, err)
	}
	key := path.Join("exports", visitID, string(kind)+".pdf")
	if err := p.archive.UploadPDF(ctx, key, doc); err != nil {
		return "", fmt.Errorf("store %s pdf: %w", kind, err)
	}
	return key, nil
}
