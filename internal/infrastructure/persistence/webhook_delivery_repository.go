package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// GormWebhookDeliveryRepository implements WebhookDeliveryRepository using GORM
type GormWebhookDeliveryRepository struct {
	db *gorm.DB
}

// NewGormWebhookDeliveryRepository creates a new GormWebhookDeliveryRepository
func NewGormWebhookDeliveryRepository(db *gorm.DB) *GormWebhookDeliveryRepository {
	return &GormWebhookDeliveryRepository{db: db}
}

// FindByID finds a delivery by its ID
func (r *GormWebhookDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*channel.WebhookDelivery, error) {
	var model models.WebhookDeliveryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrDeliveryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a delivery
func (r *GormWebhookDeliveryRepository) Save(ctx context.Context, d *channel.WebhookDelivery) error {
	var model models.WebhookDeliveryModel
	model.FromDomain(d)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ channel.WebhookDeliveryRepository = (*GormWebhookDeliveryRepository)(nil)
