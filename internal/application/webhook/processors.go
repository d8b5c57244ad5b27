package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/channelsync/backend/internal/domain/channel"
)

// Sync job priorities. Inventory moves first: a stale quantity risks
// overselling, a stale title does not.
const (
	priorityInventory = 8
	priorityOrders    = 5
)

// registerDefaults binds the built-in processors for the platform
// events the engine subscribes to out of the box.
func (h *Handler) registerDefaults() {
	h.RegisterProcessor(channel.ChannelTypeShopify, "inventory_levels/update", h.shopifyInventoryUpdate)
	h.RegisterProcessor(channel.ChannelTypeShopify, "orders/create", h.shopifyOrderCreate)
	h.RegisterProcessor(channel.ChannelTypeAmazon, "ITEM_INVENTORY_EVENT_CHANGE", h.amazonInventoryChange)
	h.RegisterProcessor(channel.ChannelTypeWooCommerce, "order.created", h.wooOrderCreate)
}

// enqueueSyncJob pushes one normalized job onto the channel-sync topic
func (h *Handler) enqueueSyncJob(ctx context.Context, job channel.SyncJob) (map[string]any, error) {
	queued, err := h.queue.Enqueue(ctx, channel.TopicChannelSync, job, channel.EnqueueOptions{
		Priority: job.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue sync job: %w", err)
	}
	return map[string]any{
		"job_id":   queued.ID.String(),
		"resource": string(job.Resource),
		"event":    job.Event,
	}, nil
}

// shopifyInventoryUpdate handles Shopify inventory_levels/update:
// available quantity for one inventory item at one location.
func (h *Handler) shopifyInventoryUpdate(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
	itemID, ok := payload["inventory_item_id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing inventory_item_id", channel.ErrInvalidWebhookPayload)
	}
	available, ok := payload["available"]
	if !ok {
		return nil, fmt.Errorf("%w: missing available", channel.ErrInvalidWebhookPayload)
	}

	return h.enqueueSyncJob(ctx, channel.SyncJob{
		ChannelID: ch.ID,
		Type:      "webhook",
		Event:     event,
		Resource:  channel.ResourceInventory,
		Priority:  priorityInventory,
		Data: map[string]any{
			"remote_id":   idString(itemID),
			"quantity":    available,
			"location_id": payload["location_id"],
		},
	})
}

// shopifyOrderCreate handles Shopify orders/create
func (h *Handler) shopifyOrderCreate(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
	orderID, ok := payload["id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing id", channel.ErrInvalidWebhookPayload)
	}

	return h.enqueueSyncJob(ctx, channel.SyncJob{
		ChannelID: ch.ID,
		Type:      "webhook",
		Event:     event,
		Resource:  channel.ResourceOrders,
		Priority:  priorityOrders,
		Data: map[string]any{
			"remote_id": idString(orderID),
			"order":     payload,
		},
	})
}

// amazonInventoryChange handles the SP-API notification for inventory
// level changes (ITEM_INVENTORY_EVENT_CHANGE).
func (h *Handler) amazonInventoryChange(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
	sku, ok := payload["sellerSku"]
	if !ok {
		sku, ok = payload["sku"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing sellerSku", channel.ErrInvalidWebhookPayload)
	}

	return h.enqueueSyncJob(ctx, channel.SyncJob{
		ChannelID: ch.ID,
		Type:      "webhook",
		Event:     event,
		Resource:  channel.ResourceInventory,
		Priority:  priorityInventory,
		Data: map[string]any{
			"sku":      idString(sku),
			"quantity": payload["quantity"],
		},
	})
}

// wooOrderCreate handles WooCommerce order.created
func (h *Handler) wooOrderCreate(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (map[string]any, error) {
	orderID, ok := payload["id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing id", channel.ErrInvalidWebhookPayload)
	}

	return h.enqueueSyncJob(ctx, channel.SyncJob{
		ChannelID: ch.ID,
		Type:      "webhook",
		Event:     event,
		Resource:  channel.ResourceOrders,
		Priority:  priorityOrders,
		Data: map[string]any{
			"remote_id": idString(orderID),
			"order":     payload,
		},
	})
}

// idString normalizes platform identifiers to strings. JSON decoding
// hands numeric ids over as float64, so 123 must become "123", not
// "1.23e+02".
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
