package repository

import (
	"steward-backend/internal/folder/domain"
)

// HintRepository defines the interface for folder hint storage. Hints are
// appended or updated, never deleted automatically.
type HintRepository interface {
	// FindByHint lists every stored mapping for a signature bucket.
	FindByHint(hint string) ([]*domain.FolderHint, error)

	// FindByHintAndFolder finds one mapping, returning (nil, nil) when absent.
	FindByHintAndFolder(hint, folder string) (*domain.FolderHint, error)

	// Save inserts or updates a hint.
	Save(hint *domain.FolderHint) error
}
