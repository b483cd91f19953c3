package repository

import (
	"time"

	"gorm.io/gorm"

	"steward-backend/internal/message/domain"
)

// gormMessageRepository implements MessageRepository using GORM
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based MessageRepository
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	db.AutoMigrate(&domain.Message{})
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) FindByFingerprint(fingerprint string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("fingerprint = ?", fingerprint).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *gormMessageRepository) FindByState(state domain.State) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Where("state = ?", state).Order("received_at ASC").Find(&messages).Error
	return messages, err
}

func (r *gormMessageRepository) FindAll() ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Order("received_at ASC").Find(&messages).Error
	return messages, err
}

func (r *gormMessageRepository) Save(message *domain.Message) error {
	now := time.Now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now
	return r.db.Save(message).Error
}
