package repository

import (
	"time"

	"steward-backend/internal/calendar/domain"
)

// EventRepository defines the interface for calendar event storage. Only the
// reconciler writes through it.
type EventRepository interface {
	// FindByUID finds an event, returning (nil, nil) when absent.
	FindByUID(uid string) (*domain.CalendarEvent, error)

	// FindActiveOverlapping lists active events intersecting [start, end).
	FindActiveOverlapping(start, end time.Time) ([]*domain.CalendarEvent, error)

	// FindActive lists every active event ordered by start time.
	FindActive() ([]*domain.CalendarEvent, error)

	// FindActiveByIdentity lists active events sharing a normalized title and
	// location, regardless of start time.
	FindActiveByIdentity(normalizedTitle, normalizedLocation string) ([]*domain.CalendarEvent, error)

	// Save inserts or updates an event.
	Save(event *domain.CalendarEvent) error

	// Delete removes an event row. Used only by undo of a created event.
	Delete(uid string) error
}

// ConflictRepository defines the interface for conflict records.
type ConflictRepository interface {
	// FindOpen lists unresolved conflicts.
	FindOpen() ([]*domain.Conflict, error)

	// FindByID finds a conflict, returning (nil, nil) when absent.
	FindByID(id string) (*domain.Conflict, error)

	// FindByPair finds an open conflict between two UIDs regardless of order,
	// returning (nil, nil) when absent.
	FindByPair(uidA, uidB string) (*domain.Conflict, error)

	// Save inserts or updates a conflict record.
	Save(conflict *domain.Conflict) error
}
