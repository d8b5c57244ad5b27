package channel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ResourceType
// ---------------------------------------------------------------------------

// ResourceType identifies a synchronizable resource kind
type ResourceType string

const (
	// ResourceProducts covers the product catalog
	ResourceProducts ResourceType = "products"
	// ResourceInventory covers stock levels
	ResourceInventory ResourceType = "inventory"
	// ResourceOrders covers sales orders
	ResourceOrders ResourceType = "orders"
	// ResourceCustomers covers customer records
	ResourceCustomers ResourceType = "customers"
)

// IsValid returns true if the resource type is known
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceProducts, ResourceInventory, ResourceOrders, ResourceCustomers:
		return true
	default:
		return false
	}
}

// String returns the string representation of ResourceType
func (r ResourceType) String() string {
	return string(r)
}

// ReadOperation returns the rate-limit operation key for inbound fetches
func (r ResourceType) ReadOperation() string {
	return string(r) + ":read"
}

// WriteOperation returns the rate-limit operation key for outbound writes
func (r ResourceType) WriteOperation() string {
	return string(r) + ":write"
}

// ---------------------------------------------------------------------------
// Item
// ---------------------------------------------------------------------------

// Item is the channel-agnostic shape every record takes after the
// Transformer has normalized it. LocalID is zero for records that only
// exist remotely; RemoteID is empty for records not yet pushed.
type Item struct {
	LocalID   uuid.UUID
	RemoteID  string
	Resource  ResourceType
	SKU       string
	Name      string
	Status    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	UpdatedAt time.Time
	// Data carries the full normalized payload, used by the merge
	// strategy and persisted verbatim into conflict audit records.
	Data map[string]any
}

// NaturalKey returns the resource-specific key used to match a remote
// item against local records when no sync-state mapping exists yet.
// Products and inventory match by SKU; orders and customers by remote id.
func (i *Item) NaturalKey() string {
	switch i.Resource {
	case ResourceProducts, ResourceInventory:
		return i.SKU
	default:
		return i.RemoteID
	}
}

// FieldsDiffer reports whether two items disagree on any synced field.
// Timestamps are deliberately excluded; callers decide separately
// whether a timestamp divergence is a conflict.
func (i *Item) FieldsDiffer(other *Item) bool {
	if i.SKU != other.SKU || i.Name != other.Name || i.Status != other.Status {
		return true
	}
	if !i.Quantity.Equal(other.Quantity) || !i.Price.Equal(other.Price) {
		return true
	}
	return false
}

// FetchOptions controls one page of an adapter fetch
type FetchOptions struct {
	Page  int
	Limit int
	// Since restricts the fetch to records modified after the given
	// time. A nil Since requests a full fetch.
	Since *time.Time
}
