package ratelimit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/domain/channel"
)

// MemoryLimiter implements the rate limiter with an in-process sliding
// window per (channel, operation). Suitable for single-instance
// deployments and testing; multi-process deployments need the Redis
// limiter so the window is shared and atomic across workers.
type MemoryLimiter struct {
	mu      sync.Mutex
	limits  *Limits
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter over the limit table
func NewMemoryLimiter(limits *Limits) *MemoryLimiter {
	if limits == nil {
		limits = NewLimits()
	}
	return &MemoryLimiter{
		limits:  limits,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func windowKey(channelID uuid.UUID, operation string) string {
	return channelID.String() + "|" + operation
}

// CheckLimit records one request if the window has budget left
func (l *MemoryLimiter) CheckLimit(_ context.Context, channelID uuid.UUID, operation string) error {
	limit := l.limits.Resolve(channelID, operation)
	now := l.now()
	cutoff := now.Add(-limit.Window)
	key := windowKey(channelID, operation)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := trim(l.windows[key], cutoff)

	if len(kept) >= limit.Limit {
		l.windows[key] = kept
		reset := kept[0].Add(limit.Window)
		return &channel.RateLimitExceededError{
			ChannelID: channelID.String(),
			Operation: operation,
			Limit:     limit.Limit,
			Window:    limit.Window,
			ResetTime: reset,
			WaitTime:  reset.Sub(now),
		}
	}

	l.windows[key] = append(kept, now)
	return nil
}

// GetStatus reports window usage for every operation seen on the channel
func (l *MemoryLimiter) GetStatus(_ context.Context, channelID uuid.UUID) ([]channel.OperationStatus, error) {
	now := l.now()
	prefix := channelID.String() + "|"

	l.mu.Lock()
	defer l.mu.Unlock()

	statuses := make([]channel.OperationStatus, 0)
	for key, stamps := range l.windows {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		operation := strings.TrimPrefix(key, prefix)
		limit := l.limits.Resolve(channelID, operation)
		kept := trim(stamps, now.Add(-limit.Window))
		l.windows[key] = kept

		status := channel.OperationStatus{
			Operation: operation,
			Limit:     limit.Limit,
			Window:    limit.Window,
			Used:      len(kept),
			Remaining: limit.Limit - len(kept),
		}
		if status.Remaining < 0 {
			status.Remaining = 0
		}
		if len(kept) > 0 {
			status.ResetTime = kept[0].Add(limit.Window)
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Operation < statuses[j].Operation
	})
	return statuses, nil
}

// Reset clears one operation's window, or every window of the channel
// when operation is empty.
func (l *MemoryLimiter) Reset(_ context.Context, channelID uuid.UUID, operation string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if operation != "" {
		delete(l.windows, windowKey(channelID, operation))
		return nil
	}
	prefix := channelID.String() + "|"
	for key := range l.windows {
		if strings.HasPrefix(key, prefix) {
			delete(l.windows, key)
		}
	}
	return nil
}

// trim drops timestamps at or before the cutoff. Stamps are appended
// in order, so the first kept index bounds the window.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := sort.Search(len(stamps), func(i int) bool {
		return stamps[i].After(cutoff)
	})
	if idx == 0 {
		return stamps
	}
	kept := make([]time.Time, len(stamps)-idx)
	copy(kept, stamps[idx:])
	return kept
}

var _ channel.RateLimiter = (*MemoryLimiter)(nil)
