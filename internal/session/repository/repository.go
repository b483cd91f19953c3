package repository

import (
	"steward-backend/internal/session/domain"
)

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	// FindByID finds a session, returning (nil, nil) when absent.
	FindByID(id string) (*domain.Session, error)

	// Save inserts or updates a session.
	Save(session *domain.Session) error
}

// ActionRepository defines the interface for action record storage.
type ActionRepository interface {
	// FindBySession lists all records of a session ordered by Seq.
	FindBySession(sessionID string) ([]*domain.ActionRecord, error)

	// FindBySessionAndStatus lists a session's records with the given status,
	// ordered by Seq.
	FindBySessionAndStatus(sessionID string, status domain.ActionStatus) ([]*domain.ActionRecord, error)

	// CountBySession returns the number of records in a session.
	CountBySession(sessionID string) (int64, error)

	// Save inserts or updates a record.
	Save(record *domain.ActionRecord) error
}

// TokenRepository defines the interface for undo token storage.
type TokenRepository interface {
	// FindByToken finds a token by value, returning (nil, nil) when absent.
	FindByToken(token string) (*domain.UndoToken, error)

	// FindActiveBySession finds an unused, unexpired token for a session,
	// returning (nil, nil) when absent.
	FindActiveBySession(sessionID string) (*domain.UndoToken, error)

	// Save inserts or updates a token.
	Save(token *domain.UndoToken) error
}
