package handler

import (
	"time"

	"github.com/channelsync/backend/internal/domain/channel"
)

// TriggerSyncRequest is the body of a manual sync trigger
type TriggerSyncRequest struct {
	Resources []string `json:"resources"`
	Direction string   `json:"direction" binding:"omitempty,oneof=inbound outbound both"`
	FullSync  bool     `json:"full_sync"`
}

// SyncRunResponse is the API shape of one sync execution
type SyncRunResponse struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	Type        string              `json:"type"`
	Direction   string              `json:"direction"`
	Status      string              `json:"status"`
	Stats       channel.SyncStats   `json:"stats"`
	ItemErrors  []channel.ItemError `json:"item_errors,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

func newSyncRunResponse(run *channel.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:          run.ID.String(),
		ChannelID:   run.ChannelID.String(),
		Type:        string(run.Type),
		Direction:   string(run.Direction),
		Status:      string(run.Status),
		Stats:       run.Stats,
		ItemErrors:  run.ItemErrors,
		Error:       run.Error,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}

// DeliveryResponse is the API shape of one webhook delivery
type DeliveryResponse struct {
	ID          string         `json:"id"`
	ChannelID   string         `json:"channel_id"`
	Event       string         `json:"event"`
	Status      string         `json:"status"`
	Attempts    int            `json:"attempts"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	NextRetryAt *time.Time     `json:"next_retry_at,omitempty"`
}

func newDeliveryResponse(d *channel.WebhookDelivery) DeliveryResponse {
	return DeliveryResponse{
		ID:          d.ID.String(),
		ChannelID:   d.ChannelID.String(),
		Event:       d.Event,
		Status:      string(d.Status),
		Attempts:    d.Attempts,
		Result:      d.Result,
		Error:       d.Error,
		NextRetryAt: d.NextRetryAt,
	}
}

// ConflictResponse is the API shape of one queued conflict record
type ConflictResponse struct {
	ID         string         `json:"id"`
	ChannelID  string         `json:"channel_id"`
	Resource   string         `json:"resource"`
	LocalID    string         `json:"local_id"`
	RemoteID   string         `json:"remote_id"`
	Strategy   string         `json:"strategy"`
	Action     string         `json:"action"`
	Reason     string         `json:"reason"`
	LocalData  map[string]any `json:"local_data,omitempty"`
	RemoteData map[string]any `json:"remote_data,omitempty"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

func newConflictResponse(rec *channel.ConflictRecord) ConflictResponse {
	return ConflictResponse{
		ID:         rec.ID.String(),
		ChannelID:  rec.ChannelID.String(),
		Resource:   string(rec.Resource),
		LocalID:    rec.LocalID.String(),
		RemoteID:   rec.RemoteID,
		Strategy:   string(rec.Strategy),
		Action:     string(rec.Action),
		Reason:     rec.Reason,
		LocalData:  rec.LocalData,
		RemoteData: rec.RemoteData,
		ResolvedAt: rec.ResolvedAt,
	}
}

// RateLimitStatusResponse is the API shape of one operation's window usage
type RateLimitStatusResponse struct {
	Operation string    `json:"operation"`
	Limit     int       `json:"limit"`
	Window    string    `json:"window"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

func newRateLimitStatusResponse(s channel.OperationStatus) RateLimitStatusResponse {
	return RateLimitStatusResponse{
		Operation: s.Operation,
		Limit:     s.Limit,
		Window:    s.Window.String(),
		Used:      s.Used,
		Remaining: s.Remaining,
		ResetTime: s.ResetTime,
	}
}
