package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RateLimit is one resolved request budget: at most Limit requests in
// any trailing Window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// OperationStatus reports the current window usage for one operation
type OperationStatus struct {
	Operation string        `json:"operation"`
	Limit     int           `json:"limit"`
	Window    time.Duration `json:"window"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
}

// RateLimiter enforces per (channel, operation) request budgets over a
// trailing time window. Implementations must be safe for concurrent
// use; deployments with multiple worker processes need a shared
// backend whose trim+insert+count is atomic.
type RateLimiter interface {
	// CheckLimit records one request if the budget allows it, or
	// returns *RateLimitExceededError carrying the retry metadata.
	CheckLimit(ctx context.Context, channelID uuid.UUID, operation string) error

	// GetStatus reports window usage for every operation seen so far
	// on the channel.
	GetStatus(ctx context.Context, channelID uuid.UUID) ([]OperationStatus, error)

	// Reset clears recorded requests for one operation, or for all
	// operations of the channel when operation is empty.
	Reset(ctx context.Context, channelID uuid.UUID, operation string) error
}
