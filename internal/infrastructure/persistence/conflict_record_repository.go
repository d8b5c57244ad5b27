package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// GormConflictRecordRepository implements ConflictRecordRepository
// using GORM. The table is append-only; updates never happen.
type GormConflictRecordRepository struct {
	db *gorm.DB
}

// NewGormConflictRecordRepository creates a new GormConflictRecordRepository
func NewGormConflictRecordRepository(db *gorm.DB) *GormConflictRecordRepository {
	return &GormConflictRecordRepository{db: db}
}

// Append writes one conflict audit row
func (r *GormConflictRecordRepository) Append(ctx context.Context, rec *channel.ConflictRecord) error {
	var model models.ConflictRecordModel
	model.FromDomain(rec)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindQueued lists conflicts deferred for manual review, newest first
func (r *GormConflictRecordRepository) FindQueued(ctx context.Context, tenantID uuid.UUID, limit int) ([]channel.ConflictRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recordModels []models.ConflictRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND action = ?", tenantID, channel.ActionQueue).
		Order("resolved_at DESC").
		Limit(limit).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]channel.ConflictRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

var _ channel.ConflictRecordRepository = (*GormConflictRecordRepository)(nil)
