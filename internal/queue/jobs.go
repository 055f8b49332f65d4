package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ProcessVisitTask is scheduled each time a recording is uploaded.
	ProcessVisitTask = "visit:process"

	// taskTimeout covers normalization plus the full poll budget.
	taskTimeout = 20 * time.Minute
)

// ProcessPayload is serialized into the task payload so the worker knows
// which recording to fetch and how to process it.
type ProcessPayload struct {
	VisitID   string `json:"visit_id"`
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
	Language  string `json:"language"`
}

// Enqueuer schedules visit processing. The gateway depends on this rather
// than the concrete client so tests can substitute a recorder.
type Enqueuer interface {
	EnqueueProcess(ctx context.Context, payload ProcessPayload) error
}

// Client wraps the asynq producer.
type Client struct {
	inner *asynq.Client
}

var _ Enqueuer = (*Client)(nil)

// NewClient constructs a Client.
func NewClient(inner *asynq.Client) *Client {
	return &Client{inner: inner}
}

// EnqueueProcess enqueues a visit processing job. Failed jobs are not
// retried automatically; the clinician re-submits the whole visit instead.
func (c *Client) EnqueueProcess(ctx context.Context, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessVisitTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Timeout(taskTimeout)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
