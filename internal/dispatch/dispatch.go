package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/logger"
)

// TaskType names the kinds of background work a worker can receive.
type TaskType string

const (
	TaskSynthesis TaskType = "synthesis"
	TaskPurge     TaskType = "purge"
)

// Task is the unit of work handed from the API process to a worker.
type Task struct {
	SessionID  uuid.UUID            `json:"session_id"`
	Type       TaskType             `json:"type"`
	Mode       dto.IntelligenceMode `json:"mode,omitempty"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// Handler processes one task. Returning an error requests redelivery.
type Handler func(ctx context.Context, task Task) error

// IDispatcher is the queue between the API and the worker. Exactly one
// task runs on a worker at a time and acknowledgement happens only
// after the handler returns.
type IDispatcher interface {
	Dispatch(ctx context.Context, task Task) error
	// Start blocks delivery setup; handlers run until Close.
	Start(ctx context.Context, handler Handler) error
	Close() error
}

// Limits bound a single task execution. Soft fires a warning log;
// Hard cancels the task's context.
type Limits struct {
	Soft time.Duration
	Hard time.Duration
}

// runBounded executes the handler under the task limits.
func runBounded(ctx context.Context, handler Handler, task Task, limits Limits, log logger.ILogger) error {
	if limits.Hard > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Hard)
		defer cancel()
	}
	if limits.Soft > 0 && (limits.Hard == 0 || limits.Soft < limits.Hard) {
		timer := time.AfterFunc(limits.Soft, func() {
			log.Warn("dispatch", "task exceeded soft time limit", map[string]interface{}{
				"session_id": task.SessionID.String(),
				"task_type":  string(task.Type),
				"soft_limit": limits.Soft.String(),
			})
		})
		defer timer.Stop()
	}
	return handler(ctx, task)
}
