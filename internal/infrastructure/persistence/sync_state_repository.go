package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// GormSyncStateRepository implements SyncStateRepository using GORM
type GormSyncStateRepository struct {
	db *gorm.DB
}

// NewGormSyncStateRepository creates a new GormSyncStateRepository
func NewGormSyncStateRepository(db *gorm.DB) *GormSyncStateRepository {
	return &GormSyncStateRepository{db: db}
}

// FindByLocalID finds the mapping for a local record on one channel
func (r *GormSyncStateRepository) FindByLocalID(ctx context.Context, channelID uuid.UUID, resource channel.ResourceType, localID uuid.UUID) (*channel.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND resource = ? AND local_id = ?", channelID, resource, localID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrSyncStateNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRemoteID finds the mapping for a remote record on one channel
func (r *GormSyncStateRepository) FindByRemoteID(ctx context.Context, channelID uuid.UUID, resource channel.ResourceType, remoteID string) (*channel.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND resource = ? AND remote_id = ?", channelID, resource, remoteID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrSyncStateNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert writes the mapping, updating in place when the
// (channel, resource, local) key already exists. Concurrent executions
// land on the same row instead of creating duplicates.
func (r *GormSyncStateRepository) Upsert(ctx context.Context, state *channel.SyncState) error {
	var model models.SyncStateModel
	model.FromDomain(state)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "channel_id"}, {Name: "resource"}, {Name: "local_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"remote_id", "remote_version", "last_synced_at", "updated_at",
			}),
		}).
		Create(&model).Error
}

// DeleteByChannel removes every mapping of one channel
func (r *GormSyncStateRepository) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.SyncStateModel{}, "channel_id = ?", channelID).Error
}

var _ channel.SyncStateRepository = (*GormSyncStateRepository)(nil)
