package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChannelRepository persists Channel aggregates
type ChannelRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Channel, error)
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Channel, error)
	Save(ctx context.Context, ch *Channel) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SyncStateRepository persists local/remote mappings. Upsert writes
// must honor the (channel, resource, local_id) and (channel, resource,
// remote_id) uniqueness invariants so concurrent retries cannot create
// duplicate mappings.
type SyncStateRepository interface {
	FindByLocalID(ctx context.Context, channelID uuid.UUID, resource ResourceType, localID uuid.UUID) (*SyncState, error)
	FindByRemoteID(ctx context.Context, channelID uuid.UUID, resource ResourceType, remoteID string) (*SyncState, error)
	Upsert(ctx context.Context, state *SyncState) error
	DeleteByChannel(ctx context.Context, channelID uuid.UUID) error
}

// ConflictRecordRepository appends conflict audit rows. Records are
// immutable once written.
type ConflictRecordRepository interface {
	Append(ctx context.Context, rec *ConflictRecord) error
	FindQueued(ctx context.Context, tenantID uuid.UUID, limit int) ([]ConflictRecord, error)
}

// SyncRunRepository persists orchestrator execution rows
type SyncRunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	Save(ctx context.Context, run *SyncRun) error
}

// WebhookDeliveryRepository persists inbound webhook rows
type WebhookDeliveryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookDelivery, error)
	Save(ctx context.Context, d *WebhookDelivery) error
}

// LocalStore is the query contract over the central store database the
// engine syncs against. Storage internals are out of scope; only this
// contract is consumed.
type LocalStore interface {
	// FindByID returns the local item, or ErrLocalItemNotFound
	FindByID(ctx context.Context, tenantID uuid.UUID, resource ResourceType, localID uuid.UUID) (*Item, error)

	// FindByNaturalKey matches by the resource-specific natural key
	// (e.g. SKU for products), or returns ErrLocalItemNotFound
	FindByNaturalKey(ctx context.Context, tenantID uuid.UUID, resource ResourceType, key string) (*Item, error)

	// Create inserts a new local record and returns it with its
	// assigned LocalID
	Create(ctx context.Context, tenantID uuid.UUID, item *Item) (*Item, error)

	// Update applies the given item to the existing local record
	Update(ctx context.Context, tenantID uuid.UUID, localID uuid.UUID, item *Item) (*Item, error)

	// ModifiedSince returns items of the resource changed after since
	// that belong to the channel or are unassigned to any channel.
	// A nil since returns all such items.
	ModifiedSince(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID, resource ResourceType, since *time.Time) ([]Item, error)
}
