package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// EventStatus is the lifecycle state of a calendar event. Cancelled events
// are retained for history and never deleted by the reconciler.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
)

// CalendarEvent is an event derived from mail. Its UID is a pure function
// of the normalized identity fields, so re-deriving the intent from a
// reworded follow-up yields the same UID when the underlying appointment is
// the same.
type CalendarEvent struct {
	ID                 uint        `json:"id" gorm:"primaryKey"`
	UID                string      `json:"uid" gorm:"uniqueIndex;not null"`
	Title              string      `json:"title" gorm:"not null"`
	NormalizedTitle    string      `json:"-" gorm:"index"` // identity lookup for time shifts
	NormalizedLocation string      `json:"-" gorm:"index"`
	StartsAt           time.Time   `json:"starts_at" gorm:"index"`
	EndsAt             time.Time   `json:"ends_at" gorm:"index"`
	Timezone           string      `json:"timezone"`
	Location           string      `json:"location,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	Status             EventStatus `json:"status" gorm:"index;default:active"`
	SourceFingerprints string      `json:"source_fingerprints,omitempty"` // comma-separated message fingerprints
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// AddSource appends a contributing message fingerprint if not already present.
func (e *CalendarEvent) AddSource(fingerprint string) {
	if fingerprint == "" {
		return
	}
	for _, existing := range strings.Split(e.SourceFingerprints, ",") {
		if existing == fingerprint {
			return
		}
	}
	if e.SourceFingerprints == "" {
		e.SourceFingerprints = fingerprint
		return
	}
	e.SourceFingerprints += "," + fingerprint
}

// Overlaps reports whether two half-open time ranges [start, end) intersect.
func (e *CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.StartsAt.Before(end) && start.Before(e.EndsAt)
}

// EventUID derives the deterministic identity of an event from its
// normalized title, start time and location. No randomness, no wall clock.
func EventUID(normalizedTitle string, startsAt time.Time, location string) string {
	digest := sha256.New()
	fmt.Fprintf(digest, "%s|%s|%s", normalizedTitle, startsAt.UTC().Format(time.RFC3339), strings.ToLower(strings.TrimSpace(location)))
	return hex.EncodeToString(digest.Sum(nil))
}
