package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/domain/channel"
)

// DefaultLimit is the fallback budget applied when neither a channel
// override nor an operation default matches.
var DefaultLimit = channel.RateLimit{Limit: 100, Window: 60 * time.Second}

// Limits resolves the request budget for a (channel, operation) pair.
// Resolution order: per-channel override, per-operation default,
// fallback. Platform adapters register operation defaults matching the
// platform's published API limits; operators may pin individual
// channels tighter via overrides.
type Limits struct {
	mu         sync.RWMutex
	fallback   channel.RateLimit
	operations map[string]channel.RateLimit
	channels   map[uuid.UUID]map[string]channel.RateLimit
}

// NewLimits creates a limit table with the standard fallback
func NewLimits() *Limits {
	return &Limits{
		fallback:   DefaultLimit,
		operations: make(map[string]channel.RateLimit),
		channels:   make(map[uuid.UUID]map[string]channel.RateLimit),
	}
}

// SetFallback replaces the fallback budget
func (l *Limits) SetFallback(limit channel.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback = limit
}

// SetOperationDefault sets the default budget for one operation
func (l *Limits) SetOperationDefault(operation string, limit channel.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.operations[operation] = limit
}

// SetChannelOverride pins the budget for one operation on one channel
func (l *Limits) SetChannelOverride(channelID uuid.UUID, operation string, limit channel.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.channels[channelID] == nil {
		l.channels[channelID] = make(map[string]channel.RateLimit)
	}
	l.channels[channelID][operation] = limit
}

// Resolve returns the effective budget for the pair
func (l *Limits) Resolve(channelID uuid.UUID, operation string) channel.RateLimit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if byOp, ok := l.channels[channelID]; ok {
		if limit, ok := byOp[operation]; ok {
			return limit
		}
	}
	if limit, ok := l.operations[operation]; ok {
		return limit
	}
	return l.fallback
}
