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

// maxResponseSize is the maximum allowed response size from a channel API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// shopifyWebhookTopics are the push notifications every Shopify
// connection subscribes to
var shopifyWebhookTopics = []string{
	"products/update",
	"inventory_levels/update",
	"orders/create",
}

// ShopifyAdapter implements channel.Adapter for the Shopify Admin API
type ShopifyAdapter struct {
	config      *ShopifyConfig
	transformer channel.Transformer
	httpClient  *http.Client
}

// NewShopifyAdapter creates a Shopify adapter with the given configuration
func NewShopifyAdapter(config *ShopifyConfig) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ShopifyAdapter{
		config:      config,
		transformer: channel.IdentityTransformer(),
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// ShopifyFactory returns an AdapterFactory that binds an adapter to a
// configured Shopify channel
func ShopifyFactory() channel.AdapterFactory {
	return func(ch *channel.Channel) (channel.Adapter, error) {
		cfg, err := ShopifyConfigFromChannel(ch)
		if err != nil {
			return nil, err
		}
		return NewShopifyAdapter(cfg)
	}
}

// Type returns the channel type this adapter handles
func (a *ShopifyAdapter) Type() channel.ChannelType {
	return channel.ChannelTypeShopify
}

// Connect validates the credentials against the shop endpoint
func (a *ShopifyAdapter) Connect(ctx context.Context) error {
	_, err := a.doRequest(ctx, http.MethodGet, "shop.json", nil)
	return err
}

// Disconnect releases pooled connections
func (a *ShopifyAdapter) Disconnect(_ context.Context) error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// CheckHealth verifies the remote API is reachable and authorized
func (a *ShopifyAdapter) CheckHealth(ctx context.Context) error {
	return a.Connect(ctx)
}

// ---------------------------------------------------------------------------
// Resource Operations
// ---------------------------------------------------------------------------

// FetchResources returns one page of normalized remote items
func (a *ShopifyAdapter) FetchResources(ctx context.Context, resource channel.ResourceType, opts channel.FetchOptions) ([]channel.Item, error) {
	switch resource {
	case channel.ResourceProducts:
		return a.fetchProducts(ctx, opts)
	case channel.ResourceInventory:
		return a.fetchInventory(ctx, opts)
	case channel.ResourceOrders:
		return a.fetchOrders(ctx, opts)
	case channel.ResourceCustomers:
		return a.fetchCustomers(ctx, opts)
	default:
		return nil, channel.NewAdapterError("unsupported_resource",
			fmt.Sprintf("shopify does not expose resource %q", resource), 0)
	}
}

func (a *ShopifyAdapter) fetchProducts(ctx context.Context, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "products.json?"+pageQuery(opts, "updated_at_min"), nil)
	if err != nil {
		return nil, err
	}
	var resp shopifyProductsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError("shopify", err)
	}
	items := make([]channel.Item, 0, len(resp.Products))
	for i := range resp.Products {
		item, err := a.transformer.Transform(shopifyProductToItem(&resp.Products[i]), channel.TransformInbound)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// fetchInventory derives inventory items from product variants. The
// variant's inventory_item_id becomes the remote ID so that
// inventory_levels webhooks and sync rows refer to the same record.
func (a *ShopifyAdapter) fetchInventory(ctx context.Context, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "products.json?"+pageQuery(opts, "updated_at_min"), nil)
	if err != nil {
		return nil, err
	}
	var resp shopifyProductsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError("shopify", err)
	}
	var items []channel.Item
	for i := range resp.Products {
		p := &resp.Products[i]
		for j := range p.Variants {
			v := &p.Variants[j]
			item, err := a.transformer.Transform(shopifyVariantToInventoryItem(p, v), channel.TransformInbound)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func (a *ShopifyAdapter) fetchOrders(ctx context.Context, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "orders.json?status=any&"+pageQuery(opts, "updated_at_min"), nil)
	if err != nil {
		return nil, err
	}
	var resp shopifyOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError("shopify", err)
	}
	items := make([]channel.Item, 0, len(resp.Orders))
	for i := range resp.Orders {
		item, err := a.transformer.Transform(shopifyOrderToItem(&resp.Orders[i]), channel.TransformInbound)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *ShopifyAdapter) fetchCustomers(ctx context.Context, opts channel.FetchOptions) ([]channel.Item, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "customers.json?"+pageQuery(opts, "updated_at_min"), nil)
	if err != nil {
		return nil, err
	}
	var resp shopifyCustomersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError("shopify", err)
	}
	items := make([]channel.Item, 0, len(resp.Customers))
	for i := range resp.Customers {
		c := &resp.Customers[i]
		items = append(items, channel.Item{
			RemoteID:  strconv.FormatInt(c.ID, 10),
			Resource:  channel.ResourceCustomers,
			Name:      c.FirstName + " " + c.LastName,
			UpdatedAt: parseShopifyTime(c.UpdatedAt),
			Data: map[string]any{
				"email":      c.Email,
				"first_name": c.FirstName,
				"last_name":  c.LastName,
			},
		})
	}
	return items, nil
}

// CreateResource creates a remote record and returns it with its
// assigned remote ID and version
func (a *ShopifyAdapter) CreateResource(ctx context.Context, resource channel.ResourceType, item channel.Item) (*channel.Item, error) {
	if resource != channel.ResourceProducts {
		return nil, channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("shopify cannot create resource %q", resource), 0)
	}
	out, err := a.transformer.Transform(item, channel.TransformOutbound)
	if err != nil {
		return nil, err
	}
	payload := shopifyProductEnvelope{Product: itemToShopifyProduct(&out)}
	body, err := a.doRequest(ctx, http.MethodPost, "products.json", payload)
	if err != nil {
		return nil, err
	}
	var resp shopifyProductEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError("shopify", err)
	}
	created := shopifyProductToItem(&resp.Product)
	created.LocalID = item.LocalID
	return &created, nil
}

// UpdateResource updates the remote record identified by remoteID
func (a *ShopifyAdapter) UpdateResource(ctx context.Context, resource channel.ResourceType, remoteID string, item channel.Item) (*channel.Item, error) {
	out, err := a.transformer.Transform(item, channel.TransformOutbound)
	if err != nil {
		return nil, err
	}
	switch resource {
	case channel.ResourceProducts:
		payload := shopifyProductEnvelope{Product: itemToShopifyProduct(&out)}
		body, err := a.doRequest(ctx, http.MethodPut, "products/"+url.PathEscape(remoteID)+".json", payload)
		if err != nil {
			return nil, err
		}
		var resp shopifyProductEnvelope
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, decodeError("shopify", err)
		}
		updated := shopifyProductToItem(&resp.Product)
		updated.LocalID = item.LocalID
		return &updated, nil
	case channel.ResourceInventory:
		payload := map[string]any{
			"inventory_item_id": remoteID,
			"available":         out.Quantity.IntPart(),
		}
		if loc, ok := out.Data["location_id"]; ok {
			payload["location_id"] = loc
		}
		if _, err := a.doRequest(ctx, http.MethodPost, "inventory_levels/set.json", payload); err != nil {
			return nil, err
		}
		updated := out
		updated.RemoteID = remoteID
		return &updated, nil
	default:
		return nil, channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("shopify cannot update resource %q", resource), 0)
	}
}

// DeleteResource removes the remote record identified by remoteID
func (a *ShopifyAdapter) DeleteResource(ctx context.Context, resource channel.ResourceType, remoteID string) error {
	if resource != channel.ResourceProducts {
		return channel.NewAdapterError("unsupported_operation",
			fmt.Sprintf("shopify cannot delete resource %q", resource), 0)
	}
	_, err := a.doRequest(ctx, http.MethodDelete, "products/"+url.PathEscape(remoteID)+".json", nil)
	return err
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// SetupWebhooks registers all subscribed topics to the callback URL
func (a *ShopifyAdapter) SetupWebhooks(ctx context.Context, callbackURL string) error {
	for _, topic := range shopifyWebhookTopics {
		payload := shopifyWebhookEnvelope{Webhook: ShopifyWebhook{
			Topic:   topic,
			Address: callbackURL,
			Format:  "json",
		}}
		if _, err := a.doRequest(ctx, http.MethodPost, "webhooks.json", payload); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWebhooks unregisters all webhooks owned by this connection
func (a *ShopifyAdapter) RemoveWebhooks(ctx context.Context) error {
	body, err := a.doRequest(ctx, http.MethodGet, "webhooks.json", nil)
	if err != nil {
		return err
	}
	var resp shopifyWebhooksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decodeError("shopify", err)
	}
	for _, wh := range resp.Webhooks {
		path := "webhooks/" + strconv.FormatInt(wh.ID, 10) + ".json"
		if _, err := a.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an HTTP request against the Admin API and maps
// failures to *channel.AdapterError
func (a *ShopifyAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.Endpoint(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", a.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, channel.NewAdapterError("network_error", err.Error(), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError("shopify", resp.StatusCode, body)
	}
	return body, nil
}

func shopifyProductToItem(p *ShopifyProduct) channel.Item {
	item := channel.Item{
		RemoteID:  strconv.FormatInt(p.ID, 10),
		Resource:  channel.ResourceProducts,
		Name:      p.Title,
		Status:    p.Status,
		UpdatedAt: parseShopifyTime(p.UpdatedAt),
		Data: map[string]any{
			"title":       p.Title,
			"description": p.BodyHTML,
			"vendor":      p.Vendor,
		},
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		item.SKU = v.SKU
		item.Price = parseDecimal(v.Price)
		var total int64
		for _, variant := range p.Variants {
			total += variant.InventoryQuantity
		}
		item.Quantity = decimal.NewFromInt(total)
	}
	return item
}

func shopifyVariantToInventoryItem(p *ShopifyProduct, v *ShopifyVariant) channel.Item {
	updated := v.UpdatedAt
	if updated == "" {
		updated = p.UpdatedAt
	}
	return channel.Item{
		RemoteID:  strconv.FormatInt(v.InventoryItemID, 10),
		Resource:  channel.ResourceInventory,
		SKU:       v.SKU,
		Name:      p.Title,
		Quantity:  decimal.NewFromInt(v.InventoryQuantity),
		Price:     parseDecimal(v.Price),
		UpdatedAt: parseShopifyTime(updated),
		Data: map[string]any{
			"product_id": strconv.FormatInt(p.ID, 10),
			"variant_id": strconv.FormatInt(v.ID, 10),
		},
	}
}

func shopifyOrderToItem(o *ShopifyOrder) channel.Item {
	lines := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, map[string]any{
			"sku":      li.SKU,
			"title":    li.Title,
			"quantity": li.Quantity,
			"price":    li.Price,
		})
	}
	return channel.Item{
		RemoteID:  strconv.FormatInt(o.ID, 10),
		Resource:  channel.ResourceOrders,
		Name:      o.Name,
		Status:    shopifyOrderStatus(o),
		Price:     parseDecimal(o.TotalPrice),
		UpdatedAt: parseShopifyTime(o.UpdatedAt),
		Data: map[string]any{
			"currency":           o.Currency,
			"email":              o.Email,
			"financial_status":   o.FinancialStatus,
			"fulfillment_status": o.FulfillmentStatus,
			"line_items":         lines,
		},
	}
}

// shopifyOrderStatus collapses Shopify's two status dimensions into
// the canonical order status vocabulary
func shopifyOrderStatus(o *ShopifyOrder) string {
	switch {
	case o.FinancialStatus == "voided" || o.FinancialStatus == "refunded":
		return "cancelled"
	case o.FulfillmentStatus == "fulfilled":
		return "completed"
	case o.FinancialStatus == "paid":
		return "processing"
	default:
		return "pending"
	}
}

func itemToShopifyProduct(item *channel.Item) ShopifyProduct {
	p := ShopifyProduct{
		Title:  item.Name,
		Status: item.Status,
	}
	if desc, ok := item.Data["description"].(string); ok {
		p.BodyHTML = desc
	}
	if vendor, ok := item.Data["vendor"].(string); ok {
		p.Vendor = vendor
	}
	p.Variants = []ShopifyVariant{{
		SKU:               item.SKU,
		Price:             item.Price.String(),
		InventoryQuantity: item.Quantity.IntPart(),
	}}
	return p
}

// pageQuery builds limit/page query parameters plus the provider's
// modified-since filter when an incremental watermark is set
func pageQuery(opts channel.FetchOptions, sinceParam string) string {
	values := url.Values{}
	if opts.Limit > 0 {
		values.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Page > 0 {
		values.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Since != nil {
		values.Set(sinceParam, opts.Since.UTC().Format(time.RFC3339))
	}
	return values.Encode()
}

func parseShopifyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// statusError maps an HTTP failure status to a normalized adapter error
func statusError(provider string, status int, body []byte) *channel.AdapterError {
	code := "request_failed"
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = "unauthorized"
	case status == http.StatusNotFound:
		code = "not_found"
	case status == http.StatusTooManyRequests:
		code = "rate_limited"
	case status >= 500:
		code = "server_error"
	}
	msg := fmt.Sprintf("%s API request failed", provider)
	if len(body) > 0 && len(body) <= 512 {
		msg = fmt.Sprintf("%s: %s", msg, string(body))
	}
	return channel.NewAdapterError(code, msg, status)
}

// decodeError wraps a malformed provider response
func decodeError(provider string, err error) *channel.AdapterError {
	return channel.NewAdapterError("invalid_response",
		fmt.Sprintf("%s returned an unparseable response: %v", provider, err), 0)
}

// Ensure ShopifyAdapter implements the Adapter interface
var _ channel.Adapter = (*ShopifyAdapter)(nil)
