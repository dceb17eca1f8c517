package session

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned by a conditional update whose expected
// version no longer matches the stored row. Callers retry the whole
// operation against the new version.
var ErrVersionConflict = errors.New("session version conflict")

// Mutation is the field set applied by one conditional update.
// Transitions and EndTime are always written; the breakdown and coverage
// fields are written only when Recomputed is set.
type Mutation struct {
	Transitions []Transition
	EndTime     time.Time

	Recomputed   bool
	ActivityTime map[ActivityType]float64
	TotalTime    float64
	FactsCovered map[Stage]map[string]*FactCoverage
}

// Totals are the monotonic accumulated metrics added onto a session
// outside the versioned write path. Pure adds commute, so they need no
// optimistic locking.
type Totals struct {
	ActiveSeconds    float64
	WasteSeconds     float64
	XPEarned         float64
	TotalQuestions   int64
	CorrectQuestions int64
}

// Store is the conditional key-value persistence required by the session
// state machine. The conditional update is the sole linearization point
// for session state.
type Store interface {
	// GetLatestByUserID returns the most recent session for a user by
	// end-time recency, or nil when the user has none.
	GetLatestByUserID(userID string) (*Session, error)

	// Create plain-writes a brand new session at version 1.
	Create(sess *Session) error

	// ConditionalUpdate applies the mutation and bumps the version by
	// exactly one, gated on expectedVersion. Returns ErrVersionConflict
	// when the gate fails.
	ConditionalUpdate(sessionID string, expectedVersion int64, mut Mutation) error

	// IncrementTotals atomically adds flushed metrics onto the session
	// without touching its version.
	IncrementTotals(sessionID string, totals Totals) error
}
