package port

import (
	"context"
	"time"
)

// Task is a background job with a stable type identifier and opaque payload.
// Payload encoding is the caller's concern.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. Returning a non-nil error requests a retry per
// the adapter's policy, so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes enqueue behavior; zero values mean "unspecified" and
// unsupported fields are ignored by adapters.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	UniqueTTL time.Duration
	Deadline  time.Time
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs background workers. Run blocks until the context is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
