package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// GormChannelRepository implements ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// FindByID finds a channel by its ID
func (r *GormChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*channel.Channel, error) {
	var model models.ChannelModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrChannelNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTenant lists the tenant's active channels
func (r *GormChannelRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	var channelModels []models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("name ASC").
		Find(&channelModels).Error; err != nil {
		return nil, err
	}

	channels := make([]channel.Channel, len(channelModels))
	for i, model := range channelModels {
		channels[i] = *model.ToDomain()
	}
	return channels, nil
}

// FindDueForSync lists active channels whose last completed sync is
// older than the cutoff. Channels that never synced are always due.
func (r *GormChannelRepository) FindDueForSync(ctx context.Context, cutoff time.Time) ([]channel.Channel, error) {
	var channelModels []models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("active = ? AND (last_sync_at IS NULL OR last_sync_at < ?)", true, cutoff).
		Order("last_sync_at ASC NULLS FIRST").
		Find(&channelModels).Error; err != nil {
		return nil, err
	}

	channels := make([]channel.Channel, len(channelModels))
	for i, model := range channelModels {
		channels[i] = *model.ToDomain()
	}
	return channels, nil
}

// Save creates or updates a channel
func (r *GormChannelRepository) Save(ctx context.Context, ch *channel.Channel) error {
	var model models.ChannelModel
	model.FromDomain(ch)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes a channel
func (r *GormChannelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ChannelModel{}, "id = ?", id).Error
}

var _ channel.ChannelRepository = (*GormChannelRepository)(nil)
