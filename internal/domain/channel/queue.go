package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnqueueOptions tunes scheduling of one queued job
type EnqueueOptions struct {
	// Priority elevates a job ahead of same-time work; higher is sooner
	Priority int
	// Delay postpones the job's earliest run time
	Delay time.Duration
}

// Job is the handle returned for queued work
type Job struct {
	ID       uuid.UUID `json:"id"`
	Topic    string    `json:"topic"`
	Payload  []byte    `json:"payload"`
	Priority int       `json:"priority"`
	RunAt    time.Time `json:"run_at"`
}

// Queue delivers work to the sync worker pool with at-least-once
// semantics. The payload is JSON-marshaled by the implementation.
type Queue interface {
	Enqueue(ctx context.Context, topic string, payload any, opts EnqueueOptions) (*Job, error)
}
