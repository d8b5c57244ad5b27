package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestShopifyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ShopifyConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &ShopifyConfig{ShopDomain: "acme.myshopify.com", AccessToken: "shpat_token"},
			wantErr: nil,
		},
		{
			name:    "missing domain",
			config:  &ShopifyConfig{AccessToken: "shpat_token"},
			wantErr: ErrShopifyConfigMissingDomain,
		},
		{
			name:    "missing token",
			config:  &ShopifyConfig{ShopDomain: "acme.myshopify.com"},
			wantErr: ErrShopifyConfigMissingToken,
		},
		{
			name:    "base URL override allows empty domain",
			config:  &ShopifyConfig{APIBaseURL: "http://localhost:9999", AccessToken: "shpat_token"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, ShopifyDefaultAPIVersion, tt.config.APIVersion)
				assert.True(t, tt.config.TimeoutSeconds > 0)
			}
		})
	}
}

func TestShopifyConfig_Endpoint(t *testing.T) {
	t.Run("derived from shop domain", func(t *testing.T) {
		cfg := NewShopifyConfig("acme.myshopify.com", "tok")
		assert.Equal(t,
			"https://acme.myshopify.com/admin/api/"+ShopifyDefaultAPIVersion+"/products.json",
			cfg.Endpoint("products.json"))
	})

	t.Run("base URL override", func(t *testing.T) {
		cfg := &ShopifyConfig{APIBaseURL: "http://localhost:9999/", AccessToken: "tok"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:9999/shop.json", cfg.Endpoint("/shop.json"))
	})
}

func TestShopifyConfig_VerifyWebhookSignature(t *testing.T) {
	cfg := &ShopifyConfig{WebhookSecret: "whsec"}
	body := []byte(`{"id":123}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, cfg.VerifyWebhookSignature(body, valid))
	assert.False(t, cfg.VerifyWebhookSignature(body, "bogus"))
	assert.False(t, cfg.VerifyWebhookSignature([]byte(`{"id":124}`), valid))
	assert.False(t, cfg.VerifyWebhookSignature(body, ""))

	noSecret := &ShopifyConfig{}
	assert.False(t, noSecret.VerifyWebhookSignature(body, valid))
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func newShopifyTestAdapter(t *testing.T, baseURL string) *ShopifyAdapter {
	t.Helper()
	adapter, err := NewShopifyAdapter(&ShopifyConfig{
		APIBaseURL:  baseURL,
		AccessToken: "test-token",
	})
	require.NoError(t, err)
	return adapter
}

func TestNewShopifyAdapter_InvalidConfig(t *testing.T) {
	adapter, err := NewShopifyAdapter(&ShopifyConfig{})
	assert.Error(t, err)
	assert.Nil(t, adapter)
}

func TestShopifyAdapter_Type(t *testing.T) {
	adapter := newShopifyTestAdapter(t, "http://localhost:9999")
	assert.Equal(t, channel.ChannelTypeShopify, adapter.Type())
}

func TestShopifyAdapter_FetchProducts(t *testing.T) {
	var gotQuery string
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products.json", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		json.NewEncoder(w).Encode(shopifyProductsResponse{
			Products: []ShopifyProduct{
				{
					ID:        1001,
					Title:     "Blue Mug",
					BodyHTML:  "A mug.",
					Vendor:    "Acme",
					Status:    "active",
					UpdatedAt: "2026-02-01T10:00:00Z",
					Variants: []ShopifyVariant{
						{ID: 1, SKU: "MUG-BLUE", Price: "12.50", InventoryItemID: 501, InventoryQuantity: 7},
						{ID: 2, SKU: "MUG-BLUE-XL", Price: "15.00", InventoryItemID: 502, InventoryQuantity: 3},
					},
				},
			},
		})
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items, err := adapter.FetchResources(context.Background(), channel.ResourceProducts, channel.FetchOptions{
		Page:  1,
		Limit: 50,
		Since: &since,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "1001", item.RemoteID)
	assert.Equal(t, channel.ResourceProducts, item.Resource)
	assert.Equal(t, "Blue Mug", item.Name)
	assert.Equal(t, "MUG-BLUE", item.SKU)
	assert.True(t, item.Price.Equal(decimal.NewFromFloat(12.50)))
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(10)), "quantity sums variants")
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), item.UpdatedAt)
	assert.Equal(t, "A mug.", item.Data["description"])

	assert.Equal(t, "test-token", gotToken)
	assert.Contains(t, gotQuery, "limit=50")
	assert.Contains(t, gotQuery, "page=1")
	assert.Contains(t, gotQuery, "updated_at_min=2026-01-01T00%3A00%3A00Z")
}

func TestShopifyAdapter_FetchInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(shopifyProductsResponse{
			Products: []ShopifyProduct{
				{
					ID:        1001,
					Title:     "Blue Mug",
					UpdatedAt: "2026-02-01T10:00:00Z",
					Variants: []ShopifyVariant{
						{ID: 1, SKU: "MUG-BLUE", Price: "12.50", InventoryItemID: 501, InventoryQuantity: 7},
						{ID: 2, SKU: "MUG-BLUE-XL", Price: "15.00", InventoryItemID: 502, InventoryQuantity: 3},
					},
				},
			},
		})
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	items, err := adapter.FetchResources(context.Background(), channel.ResourceInventory, channel.FetchOptions{Limit: 50})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "501", items[0].RemoteID)
	assert.Equal(t, channel.ResourceInventory, items[0].Resource)
	assert.Equal(t, "MUG-BLUE", items[0].SKU)
	assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, "502", items[1].RemoteID)
	assert.True(t, items[1].Quantity.Equal(decimal.NewFromInt(3)))
}

func TestShopifyAdapter_FetchOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders.json", r.URL.Path)
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode(shopifyOrdersResponse{
			Orders: []ShopifyOrder{
				{
					ID:              9001,
					Name:            "#1001",
					FinancialStatus: "paid",
					TotalPrice:      "42.00",
					Currency:        "USD",
					UpdatedAt:       "2026-02-01T12:00:00Z",
					LineItems:       []ShopifyLineItem{{SKU: "MUG-BLUE", Title: "Blue Mug", Quantity: 2, Price: "12.50"}},
				},
				{
					ID:                9002,
					Name:              "#1002",
					FinancialStatus:   "paid",
					FulfillmentStatus: "fulfilled",
					TotalPrice:        "10.00",
				},
				{
					ID:              9003,
					Name:            "#1003",
					FinancialStatus: "refunded",
				},
			},
		})
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	items, err := adapter.FetchResources(context.Background(), channel.ResourceOrders, channel.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "9001", items[0].RemoteID)
	assert.Equal(t, "processing", items[0].Status)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(42)))
	lines, ok := items[0].Data["line_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "MUG-BLUE", lines[0]["sku"])

	assert.Equal(t, "completed", items[1].Status)
	assert.Equal(t, "cancelled", items[2].Status)
}

func TestShopifyAdapter_FetchResources_UnsupportedResource(t *testing.T) {
	adapter := newShopifyTestAdapter(t, "http://localhost:9999")
	_, err := adapter.FetchResources(context.Background(), channel.ResourceType("giftcards"), channel.FetchOptions{})
	require.Error(t, err)

	var adapterErr *channel.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "unsupported_resource", adapterErr.Code)
}

func TestShopifyAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  string
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "unauthorized", false},
		{"not found", http.StatusNotFound, "not_found", false},
		{"rate limited", http.StatusTooManyRequests, "rate_limited", true},
		{"server error", http.StatusInternalServerError, "server_error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			adapter := newShopifyTestAdapter(t, server.URL)
			_, err := adapter.FetchResources(context.Background(), channel.ResourceProducts, channel.FetchOptions{})
			require.Error(t, err)

			var adapterErr *channel.AdapterError
			require.ErrorAs(t, err, &adapterErr)
			assert.Equal(t, tt.wantCode, adapterErr.Code)
			assert.Equal(t, tt.status, adapterErr.StatusCode)
			assert.Equal(t, tt.retryable, adapterErr.Retryable())
		})
	}
}

func TestShopifyAdapter_CreateResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/products.json", r.URL.Path)

		var envelope shopifyProductEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, "New Mug", envelope.Product.Title)
		require.Len(t, envelope.Product.Variants, 1)
		assert.Equal(t, "MUG-NEW", envelope.Product.Variants[0].SKU)

		envelope.Product.ID = 2002
		envelope.Product.UpdatedAt = "2026-02-02T08:00:00Z"
		json.NewEncoder(w).Encode(envelope)
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	created, err := adapter.CreateResource(context.Background(), channel.ResourceProducts, channel.Item{
		Resource: channel.ResourceProducts,
		SKU:      "MUG-NEW",
		Name:     "New Mug",
		Price:    decimal.NewFromFloat(9.99),
		Quantity: decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "2002", created.RemoteID)
	assert.Equal(t, "New Mug", created.Name)
}

func TestShopifyAdapter_UpdateInventory(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/inventory_levels/set.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	updated, err := adapter.UpdateResource(context.Background(), channel.ResourceInventory, "501", channel.Item{
		Resource: channel.ResourceInventory,
		Quantity: decimal.NewFromInt(12),
		Data:     map[string]any{"location_id": "77"},
	})
	require.NoError(t, err)
	assert.Equal(t, "501", updated.RemoteID)
	assert.Equal(t, "501", gotPayload["inventory_item_id"])
	assert.Equal(t, float64(12), gotPayload["available"])
	assert.Equal(t, "77", gotPayload["location_id"])
}

func TestShopifyAdapter_SetupWebhooks(t *testing.T) {
	var topics []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/webhooks.json", r.URL.Path)

		var envelope shopifyWebhookEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, "https://sync.example.com/hooks", envelope.Webhook.Address)
		topics = append(topics, envelope.Webhook.Topic)
		json.NewEncoder(w).Encode(envelope)
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	require.NoError(t, adapter.SetupWebhooks(context.Background(), "https://sync.example.com/hooks"))
	assert.Equal(t, shopifyWebhookTopics, topics)
}

func TestShopifyAdapter_RemoveWebhooks(t *testing.T) {
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(shopifyWebhooksResponse{
				Webhooks: []ShopifyWebhook{{ID: 11, Topic: "orders/create"}, {ID: 12, Topic: "products/update"}},
			})
		case http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	adapter := newShopifyTestAdapter(t, server.URL)
	require.NoError(t, adapter.RemoveWebhooks(context.Background()))
	assert.Equal(t, []string{"/webhooks/11.json", "/webhooks/12.json"}, deleted)
}

func TestShopifyFactory(t *testing.T) {
	t.Run("builds adapter from channel config", func(t *testing.T) {
		ch := mustShopifyChannel(t, map[string]any{
			"shop_domain":  "acme.myshopify.com",
			"access_token": "shpat_token",
		})
		adapter, err := ShopifyFactory()(ch)
		require.NoError(t, err)
		assert.Equal(t, channel.ChannelTypeShopify, adapter.Type())
	})

	t.Run("rejects channel without credentials", func(t *testing.T) {
		ch := mustShopifyChannel(t, map[string]any{"shop_domain": "acme.myshopify.com"})
		_, err := ShopifyFactory()(ch)
		assert.ErrorIs(t, err, ErrShopifyConfigMissingToken)
	})
}
