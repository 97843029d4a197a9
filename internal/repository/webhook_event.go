package repository

import (
	"context"
	"time"

	"marketplace-orders/internal/model"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	// Insert fails with gorm.ErrDuplicatedKey when (event id, entity id) was seen before.
	Insert(ctx context.Context, event *model.WebhookEvent) error
	Find(ctx context.Context, eventID, entityID string) (*model.WebhookEvent, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) Insert(ctx context.Context, event *model.WebhookEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepositoryImpl) Find(ctx context.Context, eventID, entityID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND entity_id = ?", eventID, entityID).
		First(&event).Error
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *webhookEventRepositoryImpl) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.WebhookEvent{})

	return result.RowsAffected, result.Error
}
