package domain

import "time"

// Conflict records two events whose time ranges overlap without sharing a
// UID. Conflicts never block the reconciler; they are surfaced and cleared
// only by explicit human action.
type Conflict struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	EventUID      string    `json:"event_uid" gorm:"index;not null"`
	OtherUID      string    `json:"other_uid" gorm:"index;not null"`
	OtherTitle    string    `json:"other_title"`
	OtherStartsAt time.Time `json:"other_starts_at"`
	Resolved      bool      `json:"resolved" gorm:"index;default:false"`
	CreatedAt     time.Time `json:"created_at"`
}
