package channel

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Channel errors
	ErrInvalidTenantID    = errors.New("channel: invalid tenant ID")
	ErrInvalidChannelName = errors.New("channel: channel name is required")
	ErrUnknownChannelType = errors.New("channel: unknown channel type")
	ErrChannelNotFound    = errors.New("channel: channel not found")
	ErrChannelInactive    = errors.New("channel: channel is inactive")

	// Adapter errors
	ErrAdapterNotRegistered = errors.New("channel: no adapter registered for channel type")
	ErrAdapterNotConfigured = errors.New("channel: adapter not configured")

	// Sync errors
	ErrSyncStateNotFound = errors.New("channel: sync state not found")
	ErrSyncRunNotFound   = errors.New("channel: sync run not found")
	ErrInvalidResource   = errors.New("channel: invalid resource type")
	ErrInvalidDirection  = errors.New("channel: invalid sync direction")
	ErrLocalItemNotFound = errors.New("channel: local item not found")

	// Webhook errors
	ErrUnknownProcessor       = errors.New("channel: no processor registered for channel/event pair")
	ErrWebhookTimeout         = errors.New("channel: webhook processor exceeded deadline")
	ErrDeliveryNotFound       = errors.New("channel: webhook delivery not found")
	ErrRetriesExhausted       = errors.New("channel: webhook retries exhausted")
	ErrDeliveryNotRetryable   = errors.New("channel: webhook delivery is not in a retryable state")
	ErrInvalidWebhookPayload  = errors.New("channel: invalid webhook payload")
	ErrWebhookSignatureFailed = errors.New("channel: webhook signature verification failed")
)

// RateLimitExceededError reports an exhausted request budget together
// with the structured retry metadata callers need to back off without
// parsing error strings.
type RateLimitExceededError struct {
	ChannelID string
	Operation string
	Limit     int
	Window    time.Duration
	// ResetTime is when the oldest in-window request expires
	ResetTime time.Time
	// WaitTime is how long the caller should wait before retrying
	WaitTime time.Duration
}

// Error implements the error interface
func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("channel: rate limit exceeded for %s on %s (%d requests per %s, retry in %s)",
		e.Operation, e.ChannelID, e.Limit, e.Window, e.WaitTime.Round(time.Millisecond))
}

// IsRateLimitExceeded reports whether err is a rate limit rejection,
// returning the typed error for callers that need the retry metadata.
func IsRateLimitExceeded(err error) (*RateLimitExceededError, bool) {
	var rle *RateLimitExceededError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
