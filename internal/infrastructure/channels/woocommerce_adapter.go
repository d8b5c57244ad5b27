package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/channel"
)

// wooWebhookTopics are the push notifications every WooCommerce
// connection subscribes to
var wooWebhookTopics = []string{
	"product.updated",
	"order.created",
}

// WooCommerceAdapter implements channel.Adapter for the WooCommerce
// REST API v3
type WooCommerceAdapter struct {
	config      *WooCommerceConfig
	transformer channel.Transformer
	httpClient  *http.Client
}

// NewWooCommerceAdapter creates a WooCommerce adapter with the given
// configuration
func NewWooCommerceAdapter(config *WooCommerceConfig) (*WooCommerceAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &WooCommerceAdapter{
		config:      config,
		transformer: channel.IdentityTransformer(),
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// WooCommerceFactory returns an AdapterFactory that binds an adapter
// to a configured WooCommerce channel
func WooCommerceFactory() channel.AdapterFactory {
	return func(ch *channel.Channel) (channel.Adapter, error) {
		cfg, err := WooCommerceConfigFromChannel(ch)
		if err != nil {
			return nil, err
		}
		return NewWooCommerceAdapter(cfg)
	}
}

// Type returns the channel type this adapter handles
func (a *WooCommerceAdapter) Type() channel.ChannelType {
	return channel.ChannelTypeWooCommerce
}

// Connect validates the credentials against the system status endpoint
func (a *WooCommerceAdapter) Connect(ctx context.Context) error {
	_, err := a.doRequest(ctx, http.MethodGet, "system_status", nil)
	return err
}

// Disconnect releases pooled connections
func (a *WooCommerceAdapter) Disconnect(_ context.Context) error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// CheckHealth verifies the remote API is reachable and authorized
func (a *WooCommerceAdapter) CheckHealth(ctx context.Context) error {
	return a.Connect(ctx)
}

// ---------------------------------------------------------------------------
// Resource Operations
// ---------------------------------------------------------------------------

// FetchResources returns one page of normalized remote items.
// WooCommerce stores stock on the product record, so the inventory
// resource reads the same endpoint and differs only in normalization.
func (a *WooCommerceAdapter) FetchResources(ctx context.Context, resource channel.ResourceType, opts channel.FetchOptions) ([]channel.Item, error) {
	switch resource {
	case channel.ResourceProducts, channel.ResourceInventory:
		return a.fetchProducts(ctx, resource, opts)
	case channel.ResourceOrders:
		return a.fetchOrders(ctx, opts)
	default:
		return nil, channel.NewAdapterError("unsupported_resource",
			fmt.Sprintf("woocommerce does not expose resource %q", resource), 0)
	}
}

func (a *WooCommerceAdapter) fetchProducts(ctx context.Context, resource channel.ResourceType, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "products?"+wooPageQuery(opts), nil)
	if err != nil {
		return nil, err
	}
	var products []WooProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, decodeError("woocommerce", err)
	}
	items := make([]channel.Item, 0, len(products))
	for i := range products {
		item, err := a.transformer.Transform(wooProductToItem(&products[i], resource), channel.TransformInbound)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *WooCommerceAdapter) fetchOrders(ctx context.Context, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "orders?"+wooPageQuery(opts), nil)
	if err != nil {
		return nil, err
	}
	var orders []WooOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, decodeError("woocommerce", err)
	}
	items := make([]channel.Item, 0, len(orders))
	for i := range orders {
		item, err := a.transformer.Transform(wooOrderToItem(&orders[i]), channel.TransformInbound)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateResource creates a remote record and returns it with its
// assigned remote ID and version
func (a *WooCommerceAdapter) CreateResource(ctx context.Context, resource channel.ResourceType, item channel.Item) (*channel.Item, error) {
	if resource != channel.ResourceProducts {
		return nil, channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("woocommerce cannot create resource %q", resource), 0)
	}
	out, err := a.transformer.Transform(item, channel.TransformOutbound)
	if err != nil {
		return nil, err
	}
	body, err := a.doRequest(ctx, http.MethodPost, "products", itemToWooProduct(&out))
	if err != nil {
		return nil, err
	}
	var created WooProduct
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, decodeError("woocommerce", err)
	}
	result := wooProductToItem(&created, channel.ResourceProducts)
	result.LocalID = item.LocalID
	return &result, nil
}

// UpdateResource updates the remote record identified by remoteID
func (a *WooCommerceAdapter) UpdateResource(ctx context.Context, resource channel.ResourceType, remoteID string, item channel.Item) (*channel.Item, error) {
	out, err := a.transformer.Transform(item, channel.TransformOutbound)
	if err != nil {
		return nil, err
	}
	var payload any
	switch resource {
	case channel.ResourceProducts:
		payload = itemToWooProduct(&out)
	case channel.ResourceInventory:
		qty := out.Quantity.IntPart()
		payload = WooProduct{StockQuantity: &qty, ManageStock: true}
	default:
		return nil, channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("woocommerce cannot update resource %q", resource), 0)
	}

	body, err := a.doRequest(ctx, http.MethodPut, "products/"+url.PathEscape(remoteID), payload)
	if err != nil {
		return nil, err
	}
	var updated WooProduct
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, decodeError("woocommerce", err)
	}
	result := wooProductToItem(&updated, resource)
	result.LocalID = item.LocalID
	return &result, nil
}

// DeleteResource removes the remote record identified by remoteID
func (a *WooCommerceAdapter) DeleteResource(ctx context.Context, resource channel.ResourceType, remoteID string) error {
	if resource != channel.ResourceProducts {
		return channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("woocommerce cannot delete resource %q", resource), 0)
	}
	_, err := a.doRequest(ctx, http.MethodDelete, "products/"+url.PathEscape(remoteID)+"?force=true", nil)
	return err
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// SetupWebhooks registers all subscribed topics to the callback URL
func (a *WooCommerceAdapter) SetupWebhooks(ctx context.Context, callbackURL string) error {
	for _, topic := range wooWebhookTopics {
		payload := WooWebhook{
			Name:        "channelsync " + topic,
			Topic:       topic,
			DeliveryURL: callbackURL,
		}
		if _, err := a.doRequest(ctx, http.MethodPost, "webhooks", payload); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWebhooks unregisters all webhooks owned by this connection
func (a *WooCommerceAdapter) RemoveWebhooks(ctx context.Context) error {
	body, err := a.doRequest(ctx, http.MethodGet, "webhooks", nil)
	if err != nil {
		return err
	}
	var hooks []WooWebhook
	if err := json.Unmarshal(body, &hooks); err != nil {
		return decodeError("woocommerce", err)
	}
	for _, wh := range hooks {
		path := "webhooks/" + strconv.FormatInt(wh.ID, 10) + "?force=true"
		if _, err := a.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an HTTP request against the REST API and maps
// failures to *channel.AdapterError
func (a *WooCommerceAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("woocommerce: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.Endpoint(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, channel.NewAdapterError("network_error", err.Error(), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError("woocommerce", resp.StatusCode, body)
	}
	return body, nil
}

func wooProductToItem(p *WooProduct, resource channel.ResourceType) channel.Item {
	price := p.Price
	if price == "" {
		price = p.RegularPrice
	}
	item := channel.Item{
		RemoteID:  strconv.FormatInt(p.ID, 10),
		Resource:  resource,
		SKU:       p.SKU,
		Name:      p.Name,
		Status:    p.Status,
		Price:     parseDecimal(price),
		UpdatedAt: parseWooTime(p.DateModifiedGMT),
		Data: map[string]any{
			"name":        p.Name,
			"description": p.Description,
		},
	}
	if p.StockQuantity != nil {
		item.Quantity = decimal.NewFromInt(*p.StockQuantity)
	}
	return item
}

func wooOrderToItem(o *WooOrder) channel.Item {
	lines := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, map[string]any{
			"sku":      li.SKU,
			"name":     li.Name,
			"quantity": li.Quantity,
			"total":    li.Total,
		})
	}
	data := map[string]any{
		"currency":   o.Currency,
		"number":     o.Number,
		"line_items": lines,
	}
	if o.Billing != nil {
		data["email"] = o.Billing.Email
	}
	return channel.Item{
		RemoteID:  strconv.FormatInt(o.ID, 10),
		Resource:  channel.ResourceOrders,
		Name:      o.Number,
		Status:    wooOrderStatus(o.Status),
		Price:     parseDecimal(o.Total),
		UpdatedAt: parseWooTime(o.DateModifiedGMT),
		Data:      data,
	}
}

// wooOrderStatus maps WooCommerce order statuses onto the canonical
// order status vocabulary
func wooOrderStatus(status string) string {
	switch status {
	case "pending", "on-hold":
		return "pending"
	case "processing":
		return "processing"
	case "completed":
		return "completed"
	case "cancelled", "refunded", "failed", "trash":
		return "cancelled"
	default:
		return status
	}
}

func itemToWooProduct(item *channel.Item) WooProduct {
	p := WooProduct{
		Name:         item.Name,
		SKU:          item.SKU,
		Status:       item.Status,
		RegularPrice: item.Price.String(),
	}
	if desc, ok := item.Data["description"].(string); ok {
		p.Description = desc
	}
	if !item.Quantity.IsZero() {
		qty := item.Quantity.IntPart()
		p.StockQuantity = &qty
		p.ManageStock = true
	}
	return p
}

// wooPageQuery builds page/per_page query parameters plus the
// modified-since filter when an incremental watermark is set
func wooPageQuery(opts channel.FetchOptions) string {
	values := url.Values{}
	if opts.Limit > 0 {
		values.Set("per_page", strconv.Itoa(opts.Limit))
	}
	if opts.Page > 0 {
		values.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Since != nil {
		values.Set("modified_after", opts.Since.UTC().Format("2006-01-02T15:04:05"))
	}
	return values.Encode()
}

// parseWooTime parses the zone-less *_gmt timestamps as UTC
func parseWooTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure WooCommerceAdapter implements the Adapter interface
var _ channel.Adapter = (*WooCommerceAdapter)(nil)
