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

// GormLocalStore implements the LocalStore contract over the central
// store tables using GORM.
type GormLocalStore struct {
	db *gorm.DB
}

// NewGormLocalStore creates a new GormLocalStore
func NewGormLocalStore(db *gorm.DB) *GormLocalStore {
	return &GormLocalStore{db: db}
}

// FindByID finds a local item by its ID
func (s *GormLocalStore) FindByID(ctx context.Context, tenantID uuid.UUID, resource channel.ResourceType, localID uuid.UUID) (*channel.Item, error) {
	var model models.LocalItemModel
	if err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND resource = ?", localID, tenantID, resource).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrLocalItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNaturalKey matches an item by its resource-specific natural
// key: SKU for products and inventory, remote id otherwise. Remote ids
// live in sync_states, so only SKU-keyed resources can match here.
func (s *GormLocalStore) FindByNaturalKey(ctx context.Context, tenantID uuid.UUID, resource channel.ResourceType, key string) (*channel.Item, error) {
	if key == "" {
		return nil, channel.ErrLocalItemNotFound
	}

	query := s.db.WithContext(ctx).Where("tenant_id = ? AND resource = ?", tenantID, resource)
	switch resource {
	case channel.ResourceProducts, channel.ResourceInventory:
		query = query.Where("sku = ?", key)
	default:
		return nil, channel.ErrLocalItemNotFound
	}

	var model models.LocalItemModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrLocalItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new local record and returns it with its assigned ID
func (s *GormLocalStore) Create(ctx context.Context, tenantID uuid.UUID, item *channel.Item) (*channel.Item, error) {
	created := *item
	if created.LocalID == uuid.Nil {
		created.LocalID = uuid.New()
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = time.Now()
	}

	var model models.LocalItemModel
	model.FromDomain(tenantID, &created)
	model.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update applies the given item to the existing local record
func (s *GormLocalStore) Update(ctx context.Context, tenantID uuid.UUID, localID uuid.UUID, item *channel.Item) (*channel.Item, error) {
	var model models.LocalItemModel
	if err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", localID, tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrLocalItemNotFound
		}
		return nil, err
	}

	updated := *item
	updated.LocalID = localID
	if updated.Resource == "" {
		updated.Resource = model.Resource
	}
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = time.Now()
	}

	createdAt, originChannel := model.CreatedAt, model.ChannelID
	model = models.LocalItemModel{}
	model.FromDomain(tenantID, &updated)
	model.CreatedAt = createdAt
	model.ChannelID = originChannel
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// ModifiedSince returns the channel's candidates for the outbound
// pass: items changed after since that belong to the channel or to no
// channel yet.
func (s *GormLocalStore) ModifiedSince(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID, resource channel.ResourceType, since *time.Time) ([]channel.Item, error) {
	query := s.db.WithContext(ctx).
		Where("tenant_id = ? AND resource = ?", tenantID, resource).
		Where("channel_id = ? OR channel_id IS NULL", channelID)
	if since != nil {
		query = query.Where("updated_at > ?", *since)
	}

	var itemModels []models.LocalItemModel
	if err := query.Order("updated_at ASC").Find(&itemModels).Error; err != nil {
		return nil, err
	}

	items := make([]channel.Item, len(itemModels))
	for i, model := range itemModels {
		items[i] = *model.ToDomain()
	}
	return items, nil
}

var _ channel.LocalStore = (*GormLocalStore)(nil)
