package scheduler

import "context"

// Job represents a unit of work that can be executed by the worker pool.
type Job interface {
	// Execute runs the job. Implementations must respect ctx cancellation.
	Execute(ctx context.Context) error

	// Subject names what the job acts on (a customer identifier, a
	// connection id) for logs and spans.
	Subject() string

	// Description returns a human-readable description of the job.
	Description() string
}
