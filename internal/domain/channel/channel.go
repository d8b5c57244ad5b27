package channel

import (
	"strings"
	"time"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ChannelType
// ---------------------------------------------------------------------------

// ChannelType identifies an external sales platform
type ChannelType string

const (
	// ChannelTypeShopify represents a Shopify store
	ChannelTypeShopify ChannelType = "shopify"
	// ChannelTypeAmazon represents an Amazon seller account
	ChannelTypeAmazon ChannelType = "amazon"
	// ChannelTypeEbay represents an eBay seller account
	ChannelTypeEbay ChannelType = "ebay"
	// ChannelTypeSquare represents a Square online store
	ChannelTypeSquare ChannelType = "square"
	// ChannelTypeWooCommerce represents a WooCommerce store
	ChannelTypeWooCommerce ChannelType = "woocommerce"
)

// ParseChannelType normalizes a provider string to a ChannelType.
// Matching is case-insensitive.
func ParseChannelType(s string) (ChannelType, bool) {
	t := ChannelType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t, true
	}
	return "", false
}

// IsValid returns true if the channel type is a known platform
func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeShopify, ChannelTypeAmazon, ChannelTypeEbay,
		ChannelTypeSquare, ChannelTypeWooCommerce:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChannelType
func (t ChannelType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Channel
// ---------------------------------------------------------------------------

// Channel is a configured connection to one external sales platform.
// It is created when the connection is set up and its LastSyncAt moves
// forward on every successful sync execution.
type Channel struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	Name       string
	Type       ChannelType
	Config     map[string]any
	Active     bool
	LastSyncAt *time.Time
}

// NewChannel creates a new active channel for a tenant
func NewChannel(tenantID uuid.UUID, name string, channelType ChannelType, config map[string]any) (*Channel, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if name == "" {
		return nil, ErrInvalidChannelName
	}
	if !channelType.IsValid() {
		return nil, ErrUnknownChannelType
	}
	return &Channel{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		Type:       channelType,
		Config:     config,
		Active:     true,
	}, nil
}

// RecordSync advances the channel's last-sync watermark
func (c *Channel) RecordSync(at time.Time) {
	c.LastSyncAt = &at
	c.Touch()
}

// Deactivate marks the channel inactive; sync executions skip inactive channels
func (c *Channel) Deactivate() {
	c.Active = false
	c.Touch()
}

// Activate re-enables the channel
func (c *Channel) Activate() {
	c.Active = true
	c.Touch()
}

// ConfigString returns a string-typed config value, or "" when absent
func (c *Channel) ConfigString(key string) string {
	if c.Config == nil {
		return ""
	}
	if v, ok := c.Config[key].(string); ok {
		return v
	}
	return ""
}
