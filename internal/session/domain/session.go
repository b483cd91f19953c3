package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TriggerKind identifies what started a session.
type TriggerKind string

const (
	TriggerPoll     TriggerKind = "poll"
	TriggerFullSort TriggerKind = "manual-full-sort"
	TriggerUndo     TriggerKind = "undo"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusOpen means actions are being recorded but not yet applied.
	StatusOpen Status = "open"
	// StatusCommitted means every recorded action was applied.
	StatusCommitted Status = "committed"
	// StatusPartial means the commit stopped on a hard failure; applied
	// records stay applied and the session is never retried automatically.
	StatusPartial Status = "partial"
	// StatusUndone means the session was reversed via its undo token.
	StatusUndone Status = "undone"
)

// Session groups one run's decisions into an auditable, reversible batch.
type Session struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	Trigger     TriggerKind `json:"trigger" gorm:"index;not null"`
	Status      Status      `json:"status" gorm:"index;default:open"`
	StartedAt   time.Time   `json:"started_at"`
	CommittedAt *time.Time  `json:"committed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SessionID derives the deterministic session identity from the trigger
// kind and the time bucket it fires in, so two poll cycles in the same
// bucket collapse into one session instead of duplicating.
func SessionID(trigger TriggerKind, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = 15 * time.Minute
	}
	bucketStart := at.UTC().Truncate(bucket)
	digest := sha256.New()
	fmt.Fprintf(digest, "%s|%s", trigger, bucketStart.Format(time.RFC3339))
	return hex.EncodeToString(digest.Sum(nil))
}

// UndoSessionID derives the compensating session's identity from the
// session being reversed. Tokens are single use, so this is collision-free.
func UndoSessionID(originalSessionID string) string {
	digest := sha256.New()
	fmt.Fprintf(digest, "undo|%s", originalSessionID)
	return hex.EncodeToString(digest.Sum(nil))
}
