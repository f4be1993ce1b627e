package state

import "time"

// Session is the durable, stable-identified owner of an ordered message log
// and the last persisted Workflow State snapshot. Deletion cascades to its
// messages.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// State is the opaque JSON snapshot of the last run's Workflow State, nil
	// until a run has completed at least once.
	State []byte `json:"-"`
}
