package channel

import (
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types emitted by the sync engine
const (
	EventSyncCompleted      = "sync:completed"
	EventSyncFailed         = "sync:failed"
	EventConflictDetected   = "conflict:detected"
	EventWebhookProcessed   = "webhook:processed"
	EventWebhookFailed      = "webhook:failed"
	EventWebhookRetryQueued = "webhook:retry_queued"
)

// SyncCompletedEvent signals a successful sync execution
type SyncCompletedEvent struct {
	shared.BaseDomainEvent
	ChannelID uuid.UUID `json:"channel_id"`
	RunID     uuid.UUID `json:"run_id"`
	Stats     SyncStats `json:"stats"`
}

// NewSyncCompletedEvent creates a sync:completed event
func NewSyncCompletedEvent(run *SyncRun) *SyncCompletedEvent {
	return &SyncCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventSyncCompleted, "sync_run", run.ID, run.TenantID),
		ChannelID:       run.ChannelID,
		RunID:           run.ID,
		Stats:           run.Stats,
	}
}

// SyncFailedEvent signals a sync execution that aborted
type SyncFailedEvent struct {
	shared.BaseDomainEvent
	ChannelID uuid.UUID `json:"channel_id"`
	RunID     uuid.UUID `json:"run_id"`
	Reason    string    `json:"reason"`
}

// NewSyncFailedEvent creates a sync:failed event
func NewSyncFailedEvent(run *SyncRun) *SyncFailedEvent {
	return &SyncFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventSyncFailed, "sync_run", run.ID, run.TenantID),
		ChannelID:       run.ChannelID,
		RunID:           run.ID,
		Reason:          run.Error,
	}
}

// ConflictDetectedEvent signals one conflict resolution was recorded
type ConflictDetectedEvent struct {
	shared.BaseDomainEvent
	ChannelID uuid.UUID        `json:"channel_id"`
	Resource  ResourceType     `json:"resource"`
	Action    ResolutionAction `json:"action"`
}

// NewConflictDetectedEvent creates a conflict:detected event
func NewConflictDetectedEvent(rec *ConflictRecord) *ConflictDetectedEvent {
	return &ConflictDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventConflictDetected, "conflict_record", rec.ID, rec.TenantID),
		ChannelID:       rec.ChannelID,
		Resource:        rec.Resource,
		Action:          rec.Action,
	}
}

// WebhookLifecycleEvent signals webhook delivery state changes
type WebhookLifecycleEvent struct {
	shared.BaseDomainEvent
	ChannelID  uuid.UUID `json:"channel_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	Event      string    `json:"event"`
	Attempts   int       `json:"attempts"`
}

// NewWebhookLifecycleEvent creates a webhook lifecycle event of the
// given type (processed, failed, retry_queued)
func NewWebhookLifecycleEvent(eventType string, d *WebhookDelivery) *WebhookLifecycleEvent {
	return &WebhookLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "webhook_delivery", d.ID, d.TenantID),
		ChannelID:       d.ChannelID,
		DeliveryID:      d.ID,
		Event:           d.Event,
		Attempts:        d.Attempts,
	}
}
