package repository

import (
	"steward-backend/internal/message/domain"
)

// MessageRepository defines the interface for the message seen-set.
type MessageRepository interface {
	// FindByFingerprint finds a message record, returning (nil, nil) when absent.
	FindByFingerprint(fingerprint string) (*domain.Message, error)

	// FindByState lists messages in the given lifecycle state.
	FindByState(state domain.State) ([]*domain.Message, error)

	// FindAll lists every observed message.
	FindAll() ([]*domain.Message, error)

	// Save inserts or updates a message record.
	Save(message *domain.Message) error
}
