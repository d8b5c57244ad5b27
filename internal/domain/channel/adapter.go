package channel

import (
	"context"
	"fmt"
)

// ---------------------------------------------------------------------------
// AdapterError
// ---------------------------------------------------------------------------

// AdapterError is the normalized error shape every adapter maps
// provider, network and HTTP failures into.
type AdapterError struct {
	Code       string
	Message    string
	Details    map[string]any
	StatusCode int
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("adapter: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("adapter: %s (%s)", e.Message, e.Code)
}

// NewAdapterError creates a normalized adapter error
func NewAdapterError(code, message string, statusCode int) *AdapterError {
	return &AdapterError{Code: code, Message: message, StatusCode: statusCode}
}

// WithDetail attaches a detail entry and returns the error for chaining
func (e *AdapterError) WithDetail(key string, value any) *AdapterError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the failure is worth retrying. Rate limits
// and server-side errors are transient; client errors are not.
func (e *AdapterError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ---------------------------------------------------------------------------
// Adapter Port
// ---------------------------------------------------------------------------

// Adapter is the uniform capability surface over one external sales
// platform's API. Implementations normalize all records to Item via
// their Transformer and all failures to *AdapterError.
//
// This interface is defined in the domain layer; concrete
// implementations (Shopify, WooCommerce, ...) live in infrastructure.
type Adapter interface {
	// Type returns the channel type this adapter handles
	Type() ChannelType

	// Connect validates credentials and prepares the adapter for use
	Connect(ctx context.Context) error

	// Disconnect releases any resources held by the adapter
	Disconnect(ctx context.Context) error

	// CheckHealth verifies the remote API is reachable and authorized
	CheckHealth(ctx context.Context) error

	// FetchResources returns one page of normalized remote items.
	// A page shorter than opts.Limit signals the last page.
	FetchResources(ctx context.Context, resource ResourceType, opts FetchOptions) ([]Item, error)

	// CreateResource creates a remote record and returns it with its
	// assigned remote ID and version
	CreateResource(ctx context.Context, resource ResourceType, item Item) (*Item, error)

	// UpdateResource updates the remote record identified by remoteID
	UpdateResource(ctx context.Context, resource ResourceType, remoteID string, item Item) (*Item, error)

	// DeleteResource removes the remote record identified by remoteID
	DeleteResource(ctx context.Context, resource ResourceType, remoteID string) error

	// SetupWebhooks registers the platform's push notifications to the
	// given callback URL
	SetupWebhooks(ctx context.Context, url string) error

	// RemoveWebhooks unregisters all webhooks owned by this connection
	RemoveWebhooks(ctx context.Context) error
}

// AdapterFactory builds an adapter bound to one configured channel
type AdapterFactory func(ch *Channel) (Adapter, error)
