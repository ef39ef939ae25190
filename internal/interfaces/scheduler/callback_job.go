package scheduler

import (
	"context"
	"fmt"

	"bankmirror/internal/domain/callback"
)

// CallbackProcessor applies an accepted callback.
type CallbackProcessor interface {
	Process(ctx context.Context, cb *callback.Callback) error
}

// CallbackJob applies one accepted webhook outside the request that delivered it.
type CallbackJob struct {
	cb        *callback.Callback
	processor CallbackProcessor
}

func NewCallbackJob(cb *callback.Callback, processor CallbackProcessor) *CallbackJob {
	return &CallbackJob{cb: cb, processor: processor}
}

func (j *CallbackJob) Execute(ctx context.Context) error {
	return j.processor.Process(ctx, j.cb)
}

func (j *CallbackJob) Subject() string {
	if j.cb.Payload.ConnectionID != "" {
		return j.cb.Payload.ConnectionID
	}
	return j.cb.ID
}

func (j *CallbackJob) Description() string {
	return fmt.Sprintf("Callback %s %s", j.cb.Category, j.cb.ID)
}
