package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"steward-backend/internal/session/domain"
)

// gormSessionRepository implements SessionRepository using GORM
type gormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GORM-based SessionRepository
func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	db.AutoMigrate(&domain.Session{})
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) FindByID(id string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *gormSessionRepository) Save(session *domain.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	return r.db.Save(session).Error
}

// gormActionRepository implements ActionRepository using GORM
type gormActionRepository struct {
	db *gorm.DB
}

// NewGormActionRepository creates a new GORM-based ActionRepository
func NewGormActionRepository(db *gorm.DB) ActionRepository {
	db.AutoMigrate(&domain.ActionRecord{})
	return &gormActionRepository{db: db}
}

func (r *gormActionRepository) FindBySession(sessionID string) ([]*domain.ActionRecord, error) {
	var records []*domain.ActionRecord
	err := r.db.Where("session_id = ?", sessionID).Order("seq ASC").Find(&records).Error
	return records, err
}

func (r *gormActionRepository) FindBySessionAndStatus(sessionID string, status domain.ActionStatus) ([]*domain.ActionRecord, error) {
	var records []*domain.ActionRecord
	err := r.db.Where("session_id = ? AND status = ?", sessionID, status).Order("seq ASC").Find(&records).Error
	return records, err
}

func (r *gormActionRepository) CountBySession(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.ActionRecord{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

func (r *gormActionRepository) Save(record *domain.ActionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return r.db.Save(record).Error
}

// gormTokenRepository implements TokenRepository using GORM
type gormTokenRepository struct {
	db *gorm.DB
}

// NewGormTokenRepository creates a new GORM-based TokenRepository
func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	db.AutoMigrate(&domain.UndoToken{})
	return &gormTokenRepository{db: db}
}

func (r *gormTokenRepository) FindByToken(token string) (*domain.UndoToken, error) {
	var record domain.UndoToken
	err := r.db.Where("token = ?", token).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormTokenRepository) FindActiveBySession(sessionID string) (*domain.UndoToken, error) {
	var record domain.UndoToken
	err := r.db.Where("session_id = ? AND used_at IS NULL AND expires_at > ?", sessionID, time.Now()).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormTokenRepository) Save(token *domain.UndoToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	return r.db.Save(token).Error
}
