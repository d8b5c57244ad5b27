package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/channelsync/backend/internal/infrastructure/telemetry"
)

// retryPriority elevates scheduled re-deliveries above freshly
// produced sync jobs so a backlog cannot starve retries.
const retryPriority = 10

// Config tunes webhook processing
type Config struct {
	// Timeout bounds one processor invocation
	Timeout time.Duration
	// MaxRetries is the number of scheduled re-deliveries after the
	// initial attempt fails
	MaxRetries int
}

// DefaultConfig returns the standard webhook tuning
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// ProcessorFunc handles one webhook event for one channel and returns
// a result payload recorded on the delivery. Processors must be
// idempotent: the queue delivers at least once, and a timed-out
// invocation keeps running in the background.
type ProcessorFunc func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error)

// RetryJob is the payload carried on the webhook-retry topic
type RetryJob struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
}

type processorKey struct {
	channelType channel.ChannelType
	event       string
}

// Handler ingests webhook deliveries: it records every delivery,
// dispatches to the processor registered for (channel type, event),
// races the processor against the configured timeout, and schedules
// exponential-backoff retries on failure. It never mutates synced
// records itself; processors enqueue sync jobs instead.
type Handler struct {
	deliveries channel.WebhookDeliveryRepository
	channels   channel.ChannelRepository
	queue      channel.Queue
	publisher  shared.EventPublisher
	logger     *zap.Logger
	cfg        Config

	mu         sync.RWMutex
	processors map[processorKey]ProcessorFunc
}

// NewHandler wires a webhook handler with the built-in processors
// registered.
func NewHandler(
	deliveries channel.WebhookDeliveryRepository,
	channels channel.ChannelRepository,
	queue channel.Queue,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	cfg Config,
) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	h := &Handler{
		deliveries: deliveries,
		channels:   channels,
		queue:      queue,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
		processors: make(map[processorKey]ProcessorFunc),
	}
	h.registerDefaults()
	return h
}

// RegisterProcessor binds a processor to (channel type, event),
// replacing any existing binding.
func (h *Handler) RegisterProcessor(channelType channel.ChannelType, event string, fn ProcessorFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processors[processorKey{channelType, event}] = fn
}

func (h *Handler) processor(channelType channel.ChannelType, event string) (ProcessorFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.processors[processorKey{channelType, event}]
	return fn, ok
}

// Process handles one inbound webhook. The returned delivery is always
// persisted; the error reports the processing outcome (unknown
// processor, timeout, or the processor's own failure) and is nil on
// success.
func (h *Handler) Process(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (*channel.WebhookDelivery, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "process",
		telemetry.WithAttribute(telemetry.SpanAttrChannelID, ch.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrChannelType, string(ch.Type)),
	)
	defer span.End()

	delivery := channel.NewWebhookDelivery(ch.TenantID, ch.ID, event, payload)
	if err := h.deliveries.Save(ctx, delivery); err != nil {
		err = fmt.Errorf("record webhook delivery: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDeliveryID, delivery.ID.String())

	if err := h.run(ctx, ch, delivery); err != nil {
		telemetry.RecordError(span, err)
		return delivery, err
	}
	return delivery, nil
}

// Retry re-runs a failed delivery. Manual retries are allowed even
// after automatic retries are exhausted.
func (h *Handler) Retry(ctx context.Context, deliveryID uuid.UUID) (*channel.WebhookDelivery, error) {
	delivery, err := h.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !delivery.Reprocessable() {
		return nil, channel.ErrDeliveryNotRetryable
	}
	ch, err := h.channels.FindByID(ctx, delivery.ChannelID)
	if err != nil {
		return nil, err
	}

	delivery.Status = channel.DeliveryProcessing
	if err := h.deliveries.Save(ctx, delivery); err != nil {
		return nil, fmt.Errorf("reopen webhook delivery: %w", err)
	}
	return delivery, h.run(ctx, ch, delivery)
}

// run executes the processor for a processing delivery and finalizes
// the delivery state.
func (h *Handler) run(ctx context.Context, ch *channel.Channel, delivery *channel.WebhookDelivery) error {
	fn, ok := h.processor(ch.Type, delivery.Event)
	if !ok {
		// No processor means no amount of retrying will help.
		delivery.RecordFailure(channel.ErrUnknownProcessor)
		h.save(ctx, delivery)
		h.publish(ctx, channel.NewWebhookLifecycleEvent(channel.EventWebhookFailed, delivery))
		return fmt.Errorf("%w: %s/%s", channel.ErrUnknownProcessor, ch.Type, delivery.Event)
	}

	result, err := h.invoke(ctx, fn, ch, delivery)
	if err != nil {
		return h.fail(ctx, delivery, err)
	}

	delivery.Complete(result)
	h.save(ctx, delivery)
	h.publish(ctx, channel.NewWebhookLifecycleEvent(channel.EventWebhookProcessed, delivery))
	return nil
}

// invoke races the processor against the timeout. The processor
// goroutine is not cancelled on timeout; side effects may still land,
// which is why processors must be idempotent.
func (h *Handler) invoke(ctx context.Context, fn ProcessorFunc, ch *channel.Channel, delivery *channel.WebhookDelivery) (map[string]any, error) {
	type outcome struct {
		result map[string]any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(ctx, ch, delivery.Event, delivery.Payload)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(h.cfg.Timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, channel.ErrWebhookTimeout
	}
}

// fail records the failed attempt and schedules the next one while the
// retry budget lasts. The delay doubles with every attempt.
func (h *Handler) fail(ctx context.Context, delivery *channel.WebhookDelivery, cause error) error {
	delivery.RecordFailure(cause)

	if delivery.Attempts <= h.cfg.MaxRetries {
		delay := time.Duration(1<<delivery.Attempts) * time.Second
		delivery.ScheduleRetry(time.Now().Add(delay))
		h.save(ctx, delivery)

		if _, err := h.queue.Enqueue(ctx, channel.TopicWebhookRetry,
			RetryJob{DeliveryID: delivery.ID},
			channel.EnqueueOptions{Priority: retryPriority, Delay: delay},
		); err != nil {
			h.logger.Error("webhook retry enqueue failed",
				zap.String("delivery_id", delivery.ID.String()),
				zap.Error(err),
			)
			return cause
		}
		h.publish(ctx, channel.NewWebhookLifecycleEvent(channel.EventWebhookRetryQueued, delivery))
		h.logger.Warn("webhook processing failed, retry scheduled",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempt", delivery.Attempts),
			zap.Duration("delay", delay),
		)
		return cause
	}

	h.save(ctx, delivery)
	h.publish(ctx, channel.NewWebhookLifecycleEvent(channel.EventWebhookFailed, delivery))
	h.logger.Error("webhook processing failed permanently",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int("attempts", delivery.Attempts),
		zap.Error(cause),
	)
	return fmt.Errorf("%w after %d attempts: %v", channel.ErrRetriesExhausted, delivery.Attempts, cause)
}

func (h *Handler) save(ctx context.Context, delivery *channel.WebhookDelivery) {
	if err := h.deliveries.Save(ctx, delivery); err != nil {
		h.logger.Error("failed to persist webhook delivery",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Error(err),
		)
	}
}

func (h *Handler) publish(ctx context.Context, event shared.DomainEvent) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
