package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// State tracks a message through the sticky lane state machine.
type State string

const (
	// StateNew means the message has been observed but no decision applied yet.
	StateNew State = "new"
	// StateStickyFlagged means the message is actionable: it stays flagged in
	// the inbox until the user archives it, at which point the cached
	// destination is applied.
	StateStickyFlagged State = "sticky-flagged"
	// StateFiled is terminal: the message has been moved to its destination.
	StateFiled State = "filed"
)

// Message is the persisted record of an observed mail message. The body is
// kept in memory for classification only and never stored.
type Message struct {
	Fingerprint  string    `json:"fingerprint" gorm:"primaryKey"`
	UID          uint32    `json:"uid" gorm:"index;not null"`
	MessageID    string    `json:"message_id,omitempty" gorm:"index"`
	Subject      string    `json:"subject" gorm:"index"`
	Sender       string    `json:"sender" gorm:"index"`
	ToRecipients string    `json:"to_recipients,omitempty"`
	CcRecipients string    `json:"cc_recipients,omitempty"`
	ReceivedAt   time.Time `json:"received_at" gorm:"index"`
	Folder       string    `json:"folder"`
	TargetFolder string    `json:"target_folder,omitempty" gorm:"index"` // cached resolver decision
	Lane         string    `json:"lane,omitempty"`
	Confidence   float64   `json:"confidence"`
	State        State     `json:"state" gorm:"index;default:new"`
	SessionID    string    `json:"session_id,omitempty" gorm:"index"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Body string `json:"-" gorm:"-"`
}

// Fingerprint derives the stable identity of a message from its transport
// UID, subject and sender. It is a pure function of those inputs and is
// never reused across different underlying messages.
func Fingerprint(uid uint32, subject, sender string) string {
	digest := sha256.New()
	fmt.Fprintf(digest, "%d|%s|%s", uid, subject, sender)
	return hex.EncodeToString(digest.Sum(nil))
}
