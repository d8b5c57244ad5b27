package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

// LoggingHandler writes a structured log line for every sync engine
// lifecycle event. It is subscribed as the baseline observer in
// cmd/server so that runs, conflicts and webhook deliveries leave a
// trace even with no other handlers registered.
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a logging event handler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// EventTypes returns the sync engine lifecycle events
func (h *LoggingHandler) EventTypes() []string {
	return []string{
		channel.EventSyncCompleted,
		channel.EventSyncFailed,
		channel.EventConflictDetected,
		channel.EventWebhookProcessed,
		channel.EventWebhookFailed,
		channel.EventWebhookRetryQueued,
	}
}

// Handle logs the event with its type-specific fields
func (h *LoggingHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", ev.EventID().String()),
		zap.String("aggregate_id", ev.AggregateID().String()),
	}

	switch e := ev.(type) {
	case *channel.SyncCompletedEvent:
		fields = append(fields,
			zap.String("channel_id", e.ChannelID.String()),
			zap.Int("processed", e.Stats.Processed),
			zap.Int("created", e.Stats.Created),
			zap.Int("updated", e.Stats.Updated),
			zap.Int("conflicts", e.Stats.Conflicts),
		)
		h.logger.Info("sync run completed", fields...)
	case *channel.SyncFailedEvent:
		fields = append(fields,
			zap.String("channel_id", e.ChannelID.String()),
			zap.String("reason", e.Reason),
		)
		h.logger.Warn("sync run failed", fields...)
	case *channel.ConflictDetectedEvent:
		fields = append(fields,
			zap.String("channel_id", e.ChannelID.String()),
			zap.String("resource", string(e.Resource)),
			zap.String("action", string(e.Action)),
		)
		h.logger.Info("conflict detected", fields...)
	case *channel.WebhookLifecycleEvent:
		fields = append(fields,
			zap.String("channel_id", e.ChannelID.String()),
			zap.String("webhook_event", e.Event),
			zap.Int("attempts", e.Attempts),
		)
		if ev.EventType() == channel.EventWebhookFailed {
			h.logger.Warn("webhook delivery failed", fields...)
		} else {
			h.logger.Info("webhook delivery "+ev.EventType(), fields...)
		}
	default:
		h.logger.Info("event published", append(fields, zap.String("event_type", ev.EventType()))...)
	}
	return nil
}

// Ensure LoggingHandler implements EventHandler
var _ shared.EventHandler = (*LoggingHandler)(nil)
