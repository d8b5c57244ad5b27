package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/channel"
)

// fakeClock advances only when told to
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	limits := NewLimits()
	limits.SetFallback(channel.RateLimit{Limit: limit, Window: window})
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	return NewMemoryLimiter(limits).WithClock(clock.now), clock
}

func TestMemoryLimiter_EnforcesWindow(t *testing.T) {
	limiter, clock := newTestLimiter(3, time.Minute)
	channelID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
		clock.advance(time.Second)
	}

	err := limiter.CheckLimit(ctx, channelID, "products:read")
	rle, ok := channel.IsRateLimitExceeded(err)
	require.True(t, ok)
	assert.Equal(t, 3, rle.Limit)
	assert.Equal(t, time.Minute, rle.Window)
	assert.Equal(t, "products:read", rle.Operation)
	assert.Positive(t, rle.WaitTime)
	// The window frees up when the oldest request expires.
	assert.Equal(t, clock.now().Add(time.Minute-3*time.Second), rle.ResetTime)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(3, time.Minute)
	channelID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
	}
	require.Error(t, limiter.CheckLimit(ctx, channelID, "products:read"))

	clock.advance(time.Minute + time.Second)
	assert.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
}

func TestMemoryLimiter_IsolatesChannelsAndOperations(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()
	chA, chB := uuid.New(), uuid.New()

	require.NoError(t, limiter.CheckLimit(ctx, chA, "products:read"))
	require.Error(t, limiter.CheckLimit(ctx, chA, "products:read"))

	// Another operation and another channel have their own windows.
	assert.NoError(t, limiter.CheckLimit(ctx, chA, "products:write"))
	assert.NoError(t, limiter.CheckLimit(ctx, chB, "products:read"))
}

func TestMemoryLimiter_ResolutionOrder(t *testing.T) {
	limits := NewLimits()
	limits.SetOperationDefault("orders:read", channel.RateLimit{Limit: 2, Window: time.Minute})
	pinned := uuid.New()
	limits.SetChannelOverride(pinned, "orders:read", channel.RateLimit{Limit: 1, Window: time.Minute})

	limiter := NewMemoryLimiter(limits)
	ctx := context.Background()

	// Channel override beats the operation default.
	require.NoError(t, limiter.CheckLimit(ctx, pinned, "orders:read"))
	require.Error(t, limiter.CheckLimit(ctx, pinned, "orders:read"))

	// Other channels get the operation default.
	other := uuid.New()
	require.NoError(t, limiter.CheckLimit(ctx, other, "orders:read"))
	require.NoError(t, limiter.CheckLimit(ctx, other, "orders:read"))
	require.Error(t, limiter.CheckLimit(ctx, other, "orders:read"))

	// Unknown operations fall back to the default budget.
	assert.Equal(t, DefaultLimit, limits.Resolve(other, "customers:read"))
}

func TestMemoryLimiter_GetStatus(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)
	channelID := uuid.New()
	ctx := context.Background()

	require.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
	require.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
	require.NoError(t, limiter.CheckLimit(ctx, channelID, "inventory:write"))

	statuses, err := limiter.GetStatus(ctx, channelID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	// Sorted by operation name.
	assert.Equal(t, "inventory:write", statuses[0].Operation)
	assert.Equal(t, 1, statuses[0].Used)
	assert.Equal(t, 4, statuses[0].Remaining)
	assert.Equal(t, "products:read", statuses[1].Operation)
	assert.Equal(t, 2, statuses[1].Used)
	assert.Equal(t, clock.now().Add(time.Minute), statuses[1].ResetTime)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	channelID := uuid.New()
	ctx := context.Background()

	require.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
	require.NoError(t, limiter.CheckLimit(ctx, channelID, "orders:read"))
	require.Error(t, limiter.CheckLimit(ctx, channelID, "products:read"))

	t.Run("single operation", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, channelID, "products:read"))
		assert.NoError(t, limiter.CheckLimit(ctx, channelID, "products:read"))
		// The other operation's window is untouched.
		assert.Error(t, limiter.CheckLimit(ctx, channelID, "orders:read"))
	})

	t.Run("whole channel", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, channelID, ""))
		statuses, err := limiter.GetStatus(ctx, channelID)
		require.NoError(t, err)
		assert.Empty(t, statuses)
	})
}
