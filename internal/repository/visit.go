// Package repository wraps all SQL used by the gateway and the worker.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naheedk999/docai/internal/report"
	"github.com/naheedk999/docai/internal/visit"
)

// VisitRepository persists visits in Postgres.
type VisitRepository struct {
	pool *pgxpool.Pool
}

var _ visit.Store = (*VisitRepository)(nil)

// NewVisitRepository constructs a repository.
func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{pool: pool}
}

// Create inserts a queued visit before processing begins.
func (r *VisitRepository) Create(ctx context.Context, v *visit.Visit) error {
	now := time.Now().UTC()
	v.Status = visit.StatusQueued
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO visits (id, patient_id, patient_name, patient_dob, file_name, object_key, language, status, transcript, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',$9,$10)
	`, v.ID, v.PatientID, v.PatientName, v.PatientDOB, v.FileName, v.ObjectKey, v.Language, v.Status, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// Get returns a visit by id.
func (r *VisitRepository) Get(ctx context.Context, id string) (*visit.Visit, error) {
	var (
		v             visit.Visit
		patientDOB    sql.NullString
		patientReport []byte
		doctorReport  []byte
		patientPDFKey sql.NullString
		doctorPDFKey  sql.NullString
		errorMsg      sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, patient_name, patient_dob, file_name, object_key, language, status,
			COALESCE(transcript,''), patient_report, doctor_report, patient_pdf_key, doctor_pdf_key,
			error_message, created_at, updated_at
		FROM visits WHERE id=$1
	`, id)
	if err := row.Scan(&v.ID, &v.PatientID, &v.PatientName, &patientDOB, &v.FileName, &v.ObjectKey,
		&v.Language, &v.Status, &v.Transcript, &patientReport, &doctorReport, &patientPDFKey,
		&doctorPDFKey, &errorMsg, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, visit.ErrNotFound
		}
		return nil, fmt.Errorf("select visit: %w", err)
	}
	if patientDOB.Valid {
		v.PatientDOB = patientDOB.String
	}
	if rep, err := decodeReport(patientReport); err != nil {
		return nil, err
	} else {
		v.PatientReport = rep
	}
	if rep, err := decodeReport(doctorReport); err != nil {
		return nil, err
	} else {
		v.DoctorReport = rep
	}
	if patientPDFKey.Valid {
		key := patientPDFKey.String
		v.PatientPDFKey = &key
	}
	if doctorPDFKey.Valid {
		key := doctorPDFKey.String
		v.DoctorPDFKey = &key
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		v.ErrorMessage = &msg
	}
	return &v, nil
}

// MarkProcessing sets the status to processing.
func (r *VisitRepository) MarkProcessing(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE visits SET status=$1, updated_at=$2 WHERE id=$3
	`, visit.StatusProcessing, now, id)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	return nil
}

// MarkCompleted stores the transcript, both reports, and the exported
// document keys.
func (r *VisitRepository) MarkCompleted(ctx context.Context, id string, result visit.Completed) error {
	patientReport, err := encodeReport(result.PatientReport)
	if err != nil {
		return err
	}
	doctorReport, err := encodeReport(result.DoctorReport)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		UPDATE visits
		SET status=$1, transcript=$2, patient_report=$3, doctor_report=$4,
			patient_pdf_key=$5, doctor_pdf_key=$6, error_message=NULL, updated_at=$7
		WHERE id=$8
	`, visit.StatusCompleted, result.Transcript, patientReport, doctorReport,
		nullable(result.PatientPDFKey), nullable(result.DoctorPDFKey), now, id)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	return nil
}

// MarkFailed marks the processing attempt as failed and stores the message.
func (r *VisitRepository) MarkFailed(ctx context.Context, id, msg string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE visits SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4
	`, visit.StatusFailed, msg, now, id)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	return nil
}

func encodeReport(rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, nil
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

func decodeReport(data []byte) (*report.Report, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
