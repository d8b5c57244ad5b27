package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// ChannelModel
// ---------------------------------------------------------------------------

// ChannelModel is the persistence model for the Channel domain entity.
type ChannelModel struct {
	ID         uuid.UUID           `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID           `gorm:"type:uuid;not null;index:idx_channels_tenant"`
	Name       string              `gorm:"type:varchar(255);not null"`
	Type       channel.ChannelType `gorm:"type:varchar(20);not null"`
	ConfigJSON string              `gorm:"type:jsonb;column:config"`
	Active     bool                `gorm:"not null;default:true"`
	LastSyncAt *time.Time          `gorm:"index"`
	CreatedAt  time.Time           `gorm:"not null"`
	UpdatedAt  time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChannelModel) TableName() string {
	return "channels"
}

// ToDomain converts the persistence model to a domain Channel entity.
func (m *ChannelModel) ToDomain() *channel.Channel {
	ch := &channel.Channel{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		TenantID:   m.TenantID,
		Name:       m.Name,
		Type:       m.Type,
		Active:     m.Active,
		LastSyncAt: m.LastSyncAt,
	}
	if m.ConfigJSON != "" {
		var config map[string]any
		if err := json.Unmarshal([]byte(m.ConfigJSON), &config); err == nil {
			ch.Config = config
		}
	}
	return ch
}

// FromDomain populates the persistence model from a domain Channel entity.
func (m *ChannelModel) FromDomain(ch *channel.Channel) {
	m.ID = ch.ID
	m.TenantID = ch.TenantID
	m.Name = ch.Name
	m.Type = ch.Type
	m.Active = ch.Active
	m.LastSyncAt = ch.LastSyncAt
	m.CreatedAt = ch.CreatedAt
	m.UpdatedAt = ch.UpdatedAt
	m.ConfigJSON = marshalJSONObject(ch.Config)
}

// ---------------------------------------------------------------------------
// SyncStateModel
// ---------------------------------------------------------------------------

// SyncStateModel is the persistence model for the SyncState mapping.
// The two unique indexes carry the idempotency invariant: one mapping
// per (channel, resource, local) and per (channel, resource, remote).
type SyncStateModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_states_tenant"`
	ChannelID     uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:uq_sync_states_local,priority:1;uniqueIndex:uq_sync_states_remote,priority:1"`
	Resource      channel.ResourceType `gorm:"type:varchar(20);not null;uniqueIndex:uq_sync_states_local,priority:2;uniqueIndex:uq_sync_states_remote,priority:2"`
	LocalID       uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:uq_sync_states_local,priority:3"`
	RemoteID      string               `gorm:"type:varchar(100);not null;uniqueIndex:uq_sync_states_remote,priority:3"`
	RemoteVersion string               `gorm:"type:varchar(100)"`
	LastSyncedAt  time.Time            `gorm:"not null"`
	CreatedAt     time.Time            `gorm:"not null"`
	UpdatedAt     time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncStateModel) TableName() string {
	return "sync_states"
}

// ToDomain converts the persistence model to a domain SyncState.
func (m *SyncStateModel) ToDomain() *channel.SyncState {
	return &channel.SyncState{
		BaseEntity:    shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		TenantID:      m.TenantID,
		ChannelID:     m.ChannelID,
		Resource:      m.Resource,
		LocalID:       m.LocalID,
		RemoteID:      m.RemoteID,
		RemoteVersion: m.RemoteVersion,
		LastSyncedAt:  m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncState.
func (m *SyncStateModel) FromDomain(s *channel.SyncState) {
	m.ID = s.ID
	m.TenantID = s.TenantID
	m.ChannelID = s.ChannelID
	m.Resource = s.Resource
	m.LocalID = s.LocalID
	m.RemoteID = s.RemoteID
	m.RemoteVersion = s.RemoteVersion
	m.LastSyncedAt = s.LastSyncedAt
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// ---------------------------------------------------------------------------
// SyncRunModel
// ---------------------------------------------------------------------------

// SyncRunModel is the persistence model for one orchestrator execution.
type SyncRunModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_sync_runs_tenant"`
	ChannelID      uuid.UUID             `gorm:"type:uuid;not null;index:idx_sync_runs_channel"`
	Type           channel.SyncRunType   `gorm:"type:varchar(20);not null"`
	Direction      channel.SyncDirection `gorm:"type:varchar(10);not null"`
	Status         channel.SyncRunStatus `gorm:"type:varchar(20);not null;index"`
	Processed      int                   `gorm:"not null;default:0"`
	Created        int                   `gorm:"not null;default:0"`
	Updated        int                   `gorm:"not null;default:0"`
	Deleted        int                   `gorm:"not null;default:0"`
	Conflicts      int                   `gorm:"not null;default:0"`
	ErrorCount     int                   `gorm:"not null;default:0;column:error_count"`
	ItemErrorsJSON string                `gorm:"type:jsonb;column:item_errors"`
	Error          string                `gorm:"type:text"`
	StartedAt      time.Time             `gorm:"not null;index"`
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun.
func (m *SyncRunModel) ToDomain() *channel.SyncRun {
	run := &channel.SyncRun{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		TenantID:   m.TenantID,
		ChannelID:  m.ChannelID,
		Type:       m.Type,
		Direction:  m.Direction,
		Status:     m.Status,
		Stats: channel.SyncStats{
			Processed: m.Processed,
			Created:   m.Created,
			Updated:   m.Updated,
			Deleted:   m.Deleted,
			Conflicts: m.Conflicts,
			Errors:    m.ErrorCount,
		},
		Error:       m.Error,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
	if m.ItemErrorsJSON != "" {
		var itemErrors []channel.ItemError
		if err := json.Unmarshal([]byte(m.ItemErrorsJSON), &itemErrors); err == nil {
			run.ItemErrors = itemErrors
		}
	}
	return run
}

// FromDomain populates the persistence model from a domain SyncRun.
func (m *SyncRunModel) FromDomain(run *channel.SyncRun) {
	m.ID = run.ID
	m.TenantID = run.TenantID
	m.ChannelID = run.ChannelID
	m.Type = run.Type
	m.Direction = run.Direction
	m.Status = run.Status
	m.Processed = run.Stats.Processed
	m.Created = run.Stats.Created
	m.Updated = run.Stats.Updated
	m.Deleted = run.Stats.Deleted
	m.Conflicts = run.Stats.Conflicts
	m.ErrorCount = run.Stats.Errors
	m.Error = run.Error
	m.StartedAt = run.StartedAt
	m.CompletedAt = run.CompletedAt
	m.CreatedAt = run.CreatedAt
	m.UpdatedAt = run.UpdatedAt

	if len(run.ItemErrors) > 0 {
		if body, err := json.Marshal(run.ItemErrors); err == nil {
			m.ItemErrorsJSON = string(body)
		}
	} else {
		m.ItemErrorsJSON = "[]"
	}
}

// ---------------------------------------------------------------------------
// ConflictRecordModel
// ---------------------------------------------------------------------------

// ConflictRecordModel is the persistence model for the conflict audit
// trail. Rows are append-only.
type ConflictRecordModel struct {
	ID               uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID                `gorm:"type:uuid;not null;index:idx_conflicts_tenant"`
	ChannelID        uuid.UUID                `gorm:"type:uuid;not null;index:idx_conflicts_channel"`
	Resource         channel.ResourceType     `gorm:"type:varchar(20);not null"`
	LocalID          uuid.UUID                `gorm:"type:uuid"`
	RemoteID         string                   `gorm:"type:varchar(100)"`
	Strategy         channel.Strategy         `gorm:"type:varchar(20);not null"`
	Action           channel.ResolutionAction `gorm:"type:varchar(10);not null;index"`
	Reason           string                   `gorm:"type:text"`
	LocalDataJSON    string                   `gorm:"type:jsonb;column:local_data"`
	RemoteDataJSON   string                   `gorm:"type:jsonb;column:remote_data"`
	ResolvedDataJSON string                   `gorm:"type:jsonb;column:resolved_data"`
	ResolvedAt       time.Time                `gorm:"not null;index"`
	CreatedAt        time.Time                `gorm:"not null"`
	UpdatedAt        time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConflictRecordModel) TableName() string {
	return "conflict_records"
}

// ToDomain converts the persistence model to a domain ConflictRecord.
func (m *ConflictRecordModel) ToDomain() *channel.ConflictRecord {
	return &channel.ConflictRecord{
		BaseEntity:   shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		TenantID:     m.TenantID,
		ChannelID:    m.ChannelID,
		Resource:     m.Resource,
		LocalID:      m.LocalID,
		RemoteID:     m.RemoteID,
		Strategy:     m.Strategy,
		Action:       m.Action,
		Reason:       m.Reason,
		LocalData:    unmarshalJSONObject(m.LocalDataJSON),
		RemoteData:   unmarshalJSONObject(m.RemoteDataJSON),
		ResolvedData: unmarshalJSONObject(m.ResolvedDataJSON),
		ResolvedAt:   m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain ConflictRecord.
func (m *ConflictRecordModel) FromDomain(rec *channel.ConflictRecord) {
	m.ID = rec.ID
	m.TenantID = rec.TenantID
	m.ChannelID = rec.ChannelID
	m.Resource = rec.Resource
	m.LocalID = rec.LocalID
	m.RemoteID = rec.RemoteID
	m.Strategy = rec.Strategy
	m.Action = rec.Action
	m.Reason = rec.Reason
	m.LocalDataJSON = marshalJSONObject(rec.LocalData)
	m.RemoteDataJSON = marshalJSONObject(rec.RemoteData)
	m.ResolvedDataJSON = marshalJSONObject(rec.ResolvedData)
	m.ResolvedAt = rec.ResolvedAt
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
}

// ---------------------------------------------------------------------------
// WebhookDeliveryModel
// ---------------------------------------------------------------------------

// WebhookDeliveryModel is the persistence model for inbound webhook rows.
type WebhookDeliveryModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID              `gorm:"type:uuid;not null;index:idx_webhook_deliveries_tenant"`
	ChannelID   uuid.UUID              `gorm:"type:uuid;not null;index:idx_webhook_deliveries_channel"`
	Event       string                 `gorm:"type:varchar(100);not null"`
	PayloadJSON string                 `gorm:"type:jsonb;column:payload"`
	Status      channel.DeliveryStatus `gorm:"type:varchar(20);not null;index"`
	Attempts    int                    `gorm:"not null;default:0"`
	ResultJSON  string                 `gorm:"type:jsonb;column:result"`
	Error       string                 `gorm:"type:text"`
	NextRetryAt *time.Time             `gorm:"index"`
	CreatedAt   time.Time              `gorm:"not null;index"`
	UpdatedAt   time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookDeliveryModel) TableName() string {
	return "webhook_deliveries"
}

// ToDomain converts the persistence model to a domain WebhookDelivery.
func (m *WebhookDeliveryModel) ToDomain() *channel.WebhookDelivery {
	return &channel.WebhookDelivery{
		BaseEntity:  shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		TenantID:    m.TenantID,
		ChannelID:   m.ChannelID,
		Event:       m.Event,
		Payload:     unmarshalJSONObject(m.PayloadJSON),
		Status:      m.Status,
		Attempts:    m.Attempts,
		Result:      unmarshalJSONObject(m.ResultJSON),
		Error:       m.Error,
		NextRetryAt: m.NextRetryAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookDelivery.
func (m *WebhookDeliveryModel) FromDomain(d *channel.WebhookDelivery) {
	m.ID = d.ID
	m.TenantID = d.TenantID
	m.ChannelID = d.ChannelID
	m.Event = d.Event
	m.PayloadJSON = marshalJSONObject(d.Payload)
	m.Status = d.Status
	m.Attempts = d.Attempts
	m.ResultJSON = marshalJSONObject(d.Result)
	m.Error = d.Error
	m.NextRetryAt = d.NextRetryAt
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
}

// ---------------------------------------------------------------------------
// LocalItemModel
// ---------------------------------------------------------------------------

// LocalItemModel is the persistence model for records in the central
// store the engine syncs against. ChannelID marks the channel a record
// originated from; records created locally carry none.
type LocalItemModel struct {
	ID        uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID            `gorm:"type:uuid;not null;index:idx_local_items_tenant"`
	ChannelID *uuid.UUID           `gorm:"type:uuid;index:idx_local_items_channel"`
	Resource  channel.ResourceType `gorm:"type:varchar(20);not null;index:idx_local_items_resource"`
	SKU       string               `gorm:"type:varchar(100);index:idx_local_items_sku"`
	Name      string               `gorm:"type:varchar(255)"`
	Status    string               `gorm:"type:varchar(50)"`
	Quantity  decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Price     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DataJSON  string               `gorm:"type:jsonb;column:data"`
	CreatedAt time.Time            `gorm:"not null"`
	UpdatedAt time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LocalItemModel) TableName() string {
	return "local_items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *LocalItemModel) ToDomain() *channel.Item {
	return &channel.Item{
		LocalID:   m.ID,
		Resource:  m.Resource,
		SKU:       m.SKU,
		Name:      m.Name,
		Status:    m.Status,
		Quantity:  m.Quantity,
		Price:     m.Price,
		UpdatedAt: m.UpdatedAt,
		Data:      unmarshalJSONObject(m.DataJSON),
	}
}

// FromDomain populates the persistence model from a domain Item.
func (m *LocalItemModel) FromDomain(tenantID uuid.UUID, item *channel.Item) {
	m.ID = item.LocalID
	m.TenantID = tenantID
	m.Resource = item.Resource
	m.SKU = item.SKU
	m.Name = item.Name
	m.Status = item.Status
	m.Quantity = item.Quantity
	m.Price = item.Price
	m.DataJSON = marshalJSONObject(item.Data)
	m.UpdatedAt = item.UpdatedAt
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func marshalJSONObject(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(body)
}

func unmarshalJSONObject(s string) map[string]any {
	if s == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
