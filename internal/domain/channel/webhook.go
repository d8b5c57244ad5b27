package channel

import (
	"time"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// WebhookDelivery
// ---------------------------------------------------------------------------

// DeliveryStatus is the lifecycle state of one inbound webhook delivery
type DeliveryStatus string

const (
	// DeliveryProcessing marks a delivery being handled
	DeliveryProcessing DeliveryStatus = "processing"
	// DeliveryCompleted is terminal success
	DeliveryCompleted DeliveryStatus = "completed"
	// DeliveryFailed marks a failed attempt; terminal once retries are
	// exhausted, otherwise a retry has been scheduled
	DeliveryFailed DeliveryStatus = "failed"
)

// WebhookDelivery is one row per inbound webhook, created on receipt
// and updated on completion, failure and retry scheduling.
type WebhookDelivery struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	ChannelID uuid.UUID
	Event     string
	Payload   map[string]any
	Status    DeliveryStatus
	// Attempts counts processing failures; it starts at zero and is
	// incremented on every failed attempt before the retry decision.
	Attempts    int
	Result      map[string]any
	Error       string
	NextRetryAt *time.Time
}

// NewWebhookDelivery creates a processing delivery record
func NewWebhookDelivery(tenantID, channelID uuid.UUID, event string, payload map[string]any) *WebhookDelivery {
	return &WebhookDelivery{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		ChannelID:  channelID,
		Event:      event,
		Payload:    payload,
		Status:     DeliveryProcessing,
	}
}

// Complete records a successful processing result
func (d *WebhookDelivery) Complete(result map[string]any) {
	d.Status = DeliveryCompleted
	d.Result = result
	d.Error = ""
	d.NextRetryAt = nil
	d.Touch()
}

// RecordFailure marks the delivery failed and increments the attempt
// counter. The retry decision is made by the handler afterwards.
func (d *WebhookDelivery) RecordFailure(cause error) {
	d.Status = DeliveryFailed
	d.Attempts++
	if cause != nil {
		d.Error = cause.Error()
	}
	d.Touch()
}

// ScheduleRetry records when the next attempt will run
func (d *WebhookDelivery) ScheduleRetry(at time.Time) {
	d.NextRetryAt = &at
	d.Touch()
}

// Reprocessable reports whether a manual retry is allowed: only
// failed deliveries may be re-run.
func (d *WebhookDelivery) Reprocessable() bool {
	return d.Status == DeliveryFailed
}

// ---------------------------------------------------------------------------
// SyncJob
// ---------------------------------------------------------------------------

// Queue topics consumed by the sync worker pool
const (
	// TopicChannelSync carries normalized sync work produced from
	// webhooks and manual triggers
	TopicChannelSync = "channel-sync"
	// TopicWebhookRetry carries delayed webhook re-deliveries
	TopicWebhookRetry = "webhook-retry"
)

// SyncJob is the canonical job shape default webhook processors
// produce. The webhook handler never mutates inventory directly; a
// downstream consumer routes these jobs back into orchestrated sync.
type SyncJob struct {
	ChannelID uuid.UUID      `json:"channel_id"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	Resource  ResourceType   `json:"resource"`
	Data      map[string]any `json:"data"`
	Priority  int            `json:"priority,omitempty"`
}
