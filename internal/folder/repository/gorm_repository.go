package repository

import (
	"time"

	"gorm.io/gorm"

	"steward-backend/internal/folder/domain"
)

// gormHintRepository implements HintRepository using GORM
type gormHintRepository struct {
	db *gorm.DB
}

// NewGormHintRepository creates a new GORM-based HintRepository
func NewGormHintRepository(db *gorm.DB) HintRepository {
	db.AutoMigrate(&domain.FolderHint{})
	return &gormHintRepository{db: db}
}

func (r *gormHintRepository) FindByHint(hint string) ([]*domain.FolderHint, error) {
	var hints []*domain.FolderHint
	err := r.db.Where("hint = ?", hint).Order("weight DESC").Find(&hints).Error
	return hints, err
}

func (r *gormHintRepository) FindByHintAndFolder(hint, folder string) (*domain.FolderHint, error) {
	var record domain.FolderHint
	err := r.db.Where("hint = ? AND folder = ?", hint, folder).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormHintRepository) Save(hint *domain.FolderHint) error {
	if hint.CreatedAt.IsZero() {
		hint.CreatedAt = time.Now()
	}
	return r.db.Save(hint).Error
}
