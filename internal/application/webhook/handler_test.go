package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memDeliveries struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*channel.WebhookDelivery
}

func newMemDeliveries() *memDeliveries {
	return &memDeliveries{deliveries: make(map[uuid.UUID]*channel.WebhookDelivery)}
}

func (m *memDeliveries) FindByID(_ context.Context, id uuid.UUID) (*channel.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, channel.ErrDeliveryNotFound
}

func (m *memDeliveries) Save(_ context.Context, d *channel.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.deliveries[d.ID] = &cp
	return nil
}

type memChannels struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*channel.Channel
}

func newMemChannels() *memChannels {
	return &memChannels{channels: make(map[uuid.UUID]*channel.Channel)}
}

func (m *memChannels) FindByID(_ context.Context, id uuid.UUID) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.channels[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, channel.ErrChannelNotFound
}

func (m *memChannels) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	return nil, nil
}

func (m *memChannels) Save(_ context.Context, ch *channel.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *memChannels) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, id)
	return nil
}

type queuedJob struct {
	topic   string
	payload any
	opts    channel.EnqueueOptions
}

type captureQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
	err  error
}

func (q *captureQueue) Enqueue(_ context.Context, topic string, payload any, opts channel.EnqueueOptions) (*channel.Job, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{topic: topic, payload: payload, opts: opts})
	return &channel.Job{
		ID:       uuid.New(),
		Topic:    topic,
		Priority: opts.Priority,
		RunAt:    time.Now().Add(opts.Delay),
	}, nil
}

func (q *captureQueue) onTopic(topic string) []queuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queuedJob, 0)
	for _, j := range q.jobs {
		if j.topic == topic {
			out = append(out, j)
		}
	}
	return out
}

type capturingBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *capturingBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *capturingBus) typesSeen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

type handlerFixture struct {
	handler    *Handler
	deliveries *memDeliveries
	channels   *memChannels
	queue      *captureQueue
	bus        *capturingBus
	ch         *channel.Channel
}

func newHandlerFixture(t *testing.T, cfg Config) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		deliveries: newMemDeliveries(),
		channels:   newMemChannels(),
		queue:      &captureQueue{},
		bus:        &capturingBus{},
	}
	ch, err := channel.NewChannel(uuid.New(), "test-shop", channel.ChannelTypeShopify, map[string]any{
		"shop_domain": "example.myshopify.com",
	})
	require.NoError(t, err)
	f.ch = ch
	require.NoError(t, f.channels.Save(context.Background(), ch))
	f.handler = NewHandler(f.deliveries, f.channels, f.queue, f.bus, zap.NewNop(), cfg)
	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHandler_ProcessSuccess(t *testing.T) {
	f := newHandlerFixture(t, DefaultConfig())
	f.handler.RegisterProcessor(channel.ChannelTypeShopify, "products/update",
		func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
			return map[string]any{"handled": true}, nil
		})

	delivery, err := f.handler.Process(context.Background(), f.ch, "products/update", map[string]any{"id": 1.0})
	require.NoError(t, err)

	assert.Equal(t, channel.DeliveryCompleted, delivery.Status)
	assert.Equal(t, 0, delivery.Attempts)
	assert.Equal(t, map[string]any{"handled": true}, delivery.Result)

	saved, err := f.deliveries.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.DeliveryCompleted, saved.Status)
	assert.Contains(t, f.bus.typesSeen(), channel.EventWebhookProcessed)
}

func TestHandler_UnknownProcessor(t *testing.T) {
	f := newHandlerFixture(t, DefaultConfig())

	delivery, err := f.handler.Process(context.Background(), f.ch, "carts/update", map[string]any{})
	require.ErrorIs(t, err, channel.ErrUnknownProcessor)

	// Retrying cannot fix a missing processor, so none is scheduled.
	assert.Equal(t, channel.DeliveryFailed, delivery.Status)
	assert.Empty(t, f.queue.onTopic(channel.TopicWebhookRetry))
	assert.Contains(t, f.bus.typesSeen(), channel.EventWebhookFailed)
}

func TestHandler_RetriesExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	f := newHandlerFixture(t, cfg)
	boom := errors.New("downstream unavailable")
	f.handler.RegisterProcessor(channel.ChannelTypeShopify, "orders/paid",
		func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
			return nil, boom
		})

	delivery, err := f.handler.Process(context.Background(), f.ch, "orders/paid", map[string]any{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, delivery.Attempts)
	assert.NotNil(t, delivery.NextRetryAt)

	// Drain the scheduled retries: attempts 2 and 3 reschedule, the
	// fourth failure exhausts the budget.
	for i := 0; i < 2; i++ {
		_, err = f.handler.Retry(context.Background(), delivery.ID)
		require.ErrorIs(t, err, boom)
	}
	_, err = f.handler.Retry(context.Background(), delivery.ID)
	require.ErrorIs(t, err, channel.ErrRetriesExhausted)

	retries := f.queue.onTopic(channel.TopicWebhookRetry)
	require.Len(t, retries, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, retries[0].opts.Delay)
	assert.Equal(t, 4*time.Second, retries[1].opts.Delay)
	assert.Equal(t, 8*time.Second, retries[2].opts.Delay)
	for _, r := range retries {
		assert.Equal(t, retryPriority, r.opts.Priority)
	}

	final, err := f.deliveries.FindByID(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.DeliveryFailed, final.Status)
	assert.Equal(t, 4, final.Attempts)

	// Exhaustion must not enqueue a fourth retry.
	assert.Len(t, f.queue.onTopic(channel.TopicWebhookRetry), cfg.MaxRetries)
	assert.Contains(t, f.bus.typesSeen(), channel.EventWebhookFailed)
}

func TestHandler_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	f := newHandlerFixture(t, cfg)
	f.handler.RegisterProcessor(channel.ChannelTypeShopify, "slow/event",
		func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
			time.Sleep(200 * time.Millisecond)
			return map[string]any{}, nil
		})

	delivery, err := f.handler.Process(context.Background(), f.ch, "slow/event", map[string]any{})
	require.ErrorIs(t, err, channel.ErrWebhookTimeout)
	assert.Equal(t, channel.DeliveryFailed, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)
	assert.Len(t, f.queue.onTopic(channel.TopicWebhookRetry), 1)
}

func TestHandler_Retry(t *testing.T) {
	t.Run("unknown delivery", func(t *testing.T) {
		f := newHandlerFixture(t, DefaultConfig())
		_, err := f.handler.Retry(context.Background(), uuid.New())
		assert.ErrorIs(t, err, channel.ErrDeliveryNotFound)
	})

	t.Run("completed delivery is not retryable", func(t *testing.T) {
		f := newHandlerFixture(t, DefaultConfig())
		f.handler.RegisterProcessor(channel.ChannelTypeShopify, "products/update",
			func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
				return map[string]any{}, nil
			})
		delivery, err := f.handler.Process(context.Background(), f.ch, "products/update", map[string]any{})
		require.NoError(t, err)

		_, err = f.handler.Retry(context.Background(), delivery.ID)
		assert.ErrorIs(t, err, channel.ErrDeliveryNotRetryable)
	})

	t.Run("failed delivery succeeds on retry", func(t *testing.T) {
		f := newHandlerFixture(t, DefaultConfig())
		calls := 0
		f.handler.RegisterProcessor(channel.ChannelTypeShopify, "products/update",
			func(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("transient")
				}
				return map[string]any{"handled": true}, nil
			})

		delivery, err := f.handler.Process(context.Background(), f.ch, "products/update", map[string]any{})
		require.Error(t, err)

		retried, err := f.handler.Retry(context.Background(), delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, channel.DeliveryCompleted, retried.Status)
		assert.Equal(t, 2, calls)
	})
}
