package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"commonbook-be/internal/dto"
)

// Record is the single source of truth for a session's pipeline state.
// The API layer only ever reads this; the worker only ever writes it.
type Record struct {
	SessionID    uuid.UUID           `json:"session_id"`
	Status       dto.IngestionStatus `json:"status"`
	Percentage   int                 `json:"progress_percentage"`
	CurrentStep  string              `json:"current_step"`
	ErrorMessage string              `json:"error_message,omitempty"`
	ResultPath   string              `json:"result_path,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// IStore persists progress records with a session-scoped lifetime.
type IStore interface {
	// Set writes the record and refreshes its TTL.
	Set(ctx context.Context, rec Record) error
	// Get returns the current record, or (nil, nil) when the session
	// has no record (expired, flushed, or never started).
	Get(ctx context.Context, sessionID uuid.UUID) (*Record, error)
	// Flush removes every key belonging to the session.
	Flush(ctx context.Context, sessionID uuid.UUID) error
	// Touch extends the TTL of the session's keys without rewriting them.
	Touch(ctx context.Context, sessionID uuid.UUID) error
}
