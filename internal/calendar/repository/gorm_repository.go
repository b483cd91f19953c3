package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"steward-backend/internal/calendar/domain"
)

// gormEventRepository implements EventRepository using GORM
type gormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM-based EventRepository
func NewGormEventRepository(db *gorm.DB) EventRepository {
	db.AutoMigrate(&domain.CalendarEvent{})
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) FindByUID(uid string) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	err := r.db.Where("uid = ?", uid).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormEventRepository) FindActiveOverlapping(start, end time.Time) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := r.db.Where("status = ? AND starts_at < ? AND ends_at > ?", domain.EventStatusActive, end, start).
		Order("starts_at ASC").Find(&events).Error
	return events, err
}

func (r *gormEventRepository) FindActive() ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := r.db.Where("status = ?", domain.EventStatusActive).Order("starts_at ASC").Find(&events).Error
	return events, err
}

func (r *gormEventRepository) FindActiveByIdentity(normalizedTitle, normalizedLocation string) ([]*domain.CalendarEvent, error) {
	var events []*domain.CalendarEvent
	err := r.db.Where("status = ? AND normalized_title = ? AND normalized_location = ?",
		domain.EventStatusActive, normalizedTitle, normalizedLocation).
		Order("starts_at ASC").Find(&events).Error
	return events, err
}

func (r *gormEventRepository) Save(event *domain.CalendarEvent) error {
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	return r.db.Save(event).Error
}

func (r *gormEventRepository) Delete(uid string) error {
	return r.db.Delete(&domain.CalendarEvent{}, "uid = ?", uid).Error
}

// gormConflictRepository implements ConflictRepository using GORM
type gormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GORM-based ConflictRepository
func NewGormConflictRepository(db *gorm.DB) ConflictRepository {
	db.AutoMigrate(&domain.Conflict{})
	return &gormConflictRepository{db: db}
}

func (r *gormConflictRepository) FindOpen() ([]*domain.Conflict, error) {
	var conflicts []*domain.Conflict
	err := r.db.Where("resolved = ?", false).Order("created_at DESC").Find(&conflicts).Error
	return conflicts, err
}

func (r *gormConflictRepository) FindByID(id string) (*domain.Conflict, error) {
	var conflict domain.Conflict
	err := r.db.Where("id = ?", id).First(&conflict).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conflict, nil
}

func (r *gormConflictRepository) FindByPair(uidA, uidB string) (*domain.Conflict, error) {
	var conflict domain.Conflict
	err := r.db.Where(
		"resolved = ? AND ((event_uid = ? AND other_uid = ?) OR (event_uid = ? AND other_uid = ?))",
		false, uidA, uidB, uidB, uidA,
	).First(&conflict).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conflict, nil
}

func (r *gormConflictRepository) Save(conflict *domain.Conflict) error {
	if conflict.ID == "" {
		conflict.ID = uuid.New().String()
	}
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = time.Now()
	}
	return r.db.Save(conflict).Error
}
