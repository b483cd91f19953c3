package domain

import "time"

// ActionKind identifies what a recorded action does.
type ActionKind string

const (
	ActionMove        ActionKind = "move"
	ActionFlag        ActionKind = "flag"
	ActionUnflag      ActionKind = "unflag"
	ActionEventCreate ActionKind = "event-create"
	ActionEventUpdate ActionKind = "event-update"
	ActionEventCancel ActionKind = "event-cancel"
)

// ActionStatus tracks whether a record has been applied yet.
type ActionStatus string

const (
	ActionPending ActionStatus = "pending"
	ActionApplied ActionStatus = "applied"
	ActionFailed  ActionStatus = "failed"
)

// ActionRecord is one reversible operation inside a session. Records are
// immutable once applied; undo creates new compensating records instead of
// deleting history.
type ActionRecord struct {
	ID          string       `json:"id" gorm:"primaryKey"`
	SessionID   string       `json:"session_id" gorm:"index;not null"`
	Seq         int          `json:"seq" gorm:"index;not null"`
	Kind        ActionKind   `json:"kind" gorm:"index;not null"`
	Fingerprint string       `json:"fingerprint,omitempty" gorm:"index"` // source message, when applicable
	Payload     string       `json:"payload"`                            // JSON, shape depends on Kind
	Status      ActionStatus `json:"status" gorm:"index;default:pending"`
	Error       string       `json:"error,omitempty"`
	AppliedAt   *time.Time   `json:"applied_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UndoToken exchanges for one reversal of its session. Single use.
type UndoToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	SessionID string     `json:"session_id" gorm:"index;not null"`
	Token     string     `json:"token" gorm:"uniqueIndex;not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index"`
	CreatedAt time.Time  `json:"created_at"`
}
