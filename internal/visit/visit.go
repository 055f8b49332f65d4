// Package visit contains the domain model shared by the gateway, the queue
// worker, and the stores.
package visit

import (
	"context"
	"errors"
	"time"

	"github.com/naheedk999/docai/internal/report"
)

// Status enumerates the lifecycle of a visit recording during processing.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Visit represents one recorded patient visit and everything the pipeline
// produced for it.
type Visit struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	PatientDOB  string `json:"patientDob,omitempty"`
	FileName    string `json:"fileName"`
	ObjectKey   string `json:"objectKey"`
	Language    string `json:"language"`
	Status      Status `json:"status"`
	Transcript  string `json:"transcript,omitempty"`

	PatientReport *report.Report `json:"patientReport,omitempty"`
	DoctorReport  *report.Report `json:"doctorReport,omitempty"`
	PatientPDFKey *string        `json:"patientPdfKey,omitempty"`
	DoctorPDFKey  *string        `json:"doctorPdfKey,omitempty"`

	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Completed carries the artifacts stored when a visit finishes processing.
type Completed struct {
	Transcript    string
	PatientReport *report.Report
	DoctorReport  *report.Report
	PatientPDFKey string
	DoctorPDFKey  string
}

// ErrNotFound is returned by stores for unknown visit ids.
var ErrNotFound = errors.New("visit not found")

// Store persists visit records. The Postgres repository and the in-memory
// store both implement it.
type Store interface {
	Create(ctx context.Context, v *Visit) error
	Get(ctx context.Context, id string) (*Visit, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result Completed) error
	MarkFailed(ctx context.Context, id, msg string) error
}
