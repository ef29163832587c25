package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a discovery session.
// Transitions only flow pending -> processing -> {completed, failed}.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// IsTerminal returns true if the session can no longer change state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// DiscoverySession tracks one discovery run over a data source.
// Sessions are retained after completion for audit; deletion is only
// honored once the session is terminal.
type DiscoverySession struct {
	ID            uuid.UUID
	DataSourceID  string
	TargetSchemas []string // optional scope filter; empty means all schemas
	TargetTables  []string // optional scope filter; empty means all tables
	Status        SessionStatus
	// Progress is 0-100 and monotonically non-decreasing. The first 40% is
	// reserved for asset fetch and grouping, the last 10% for final
	// aggregation.
	Progress         int
	FieldsDiscovered int
	FieldsClassified int
	PIIFieldsFound   int
	ErrorMessage     *string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// CanTransitionTo reports whether moving to next is a legal status change.
func (s *DiscoverySession) CanTransitionTo(next SessionStatus) bool {
	switch s.Status {
	case SessionStatusPending:
		return next == SessionStatusProcessing
	case SessionStatusProcessing:
		return next == SessionStatusCompleted || next == SessionStatusFailed
	default:
		return false
	}
}
