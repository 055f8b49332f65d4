// Package storage contains the in-memory visit store backing gateway tests
// and the database-less development mode.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/naheedk999/docai/internal/visit"
)

// MemoryStore keeps visit records in a map guarded by an RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	visits map[string]*visit.Visit
}

var _ visit.Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visits: make(map[string]*visit.Visit),
	}
}

// Create inserts a queued visit.
func (m *MemoryStore) Create(ctx context.Context, v *visit.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	v.Status = visit.StatusQueued
	v.CreatedAt = now
	v.UpdatedAt = now
	stored := *v
	m.visits[v.ID] = &stored
	return nil
}

// Get returns a copy of the record so callers cannot mutate internal state.
func (m *MemoryStore) Get(ctx context.Context, id string) (*visit.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.visits[id]
	if !ok {
		return nil, visit.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// MarkProcessing sets the status to processing.
func (m *MemoryStore) MarkProcessing(ctx context.Context, id string) error {
	return m.update(id, func(v *visit.Visit) {
		v.Status = visit.StatusProcessing
	})
}

// MarkCompleted stores the pipeline output.
func (m *MemoryStore) MarkCompleted(ctx context.Context, id string, result visit.Completed) error {
	return m.update(id, func(v *visit.Visit) {
		v.Status = visit.StatusCompleted
		v.Transcript = result.Transcript
		v.PatientReport = result.PatientReport
		v.DoctorReport = result.DoctorReport
		if result.PatientPDFKey != "" {
			key := result.PatientPDFKey
			v.PatientPDFKey = &key
		}
		if result.DoctorPDFKey != "" {
			key := result.DoctorPDFKey
			v.DoctorPDFKey = &key
		}
		v.ErrorMessage = nil
	})
}

// MarkFailed records the failure message.
func (m *MemoryStore) MarkFailed(ctx context.Context, id, msg string) error {
	return m.update(id, func(v *visit.Visit) {
		v.Status = visit.StatusFailed
		v.ErrorMessage = &msg
	})
}

func (m *MemoryStore) update(id string, apply func(*visit.Visit)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.visits[id]
	if !ok {
		return visit.ErrNotFound
	}
	apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}
