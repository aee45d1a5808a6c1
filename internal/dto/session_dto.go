package dto

import (
	"time"

	"github.com/google/uuid"
)

// SessionResponse is returned when an ephemeral session is opened.
type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeResponse confirms the burner has run for a session.
type RevokeResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Revoked   bool      `json:"revoked"`
}
