package channels

// Shopify Admin API wire types. Only the fields the adapter reads are
// declared; everything else in the payload is ignored on decode.

// ShopifyProduct is a product record from the Admin API
type ShopifyProduct struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	BodyHTML  string           `json:"body_html,omitempty"`
	Vendor    string           `json:"vendor,omitempty"`
	Status    string           `json:"status,omitempty"`
	CreatedAt string           `json:"created_at,omitempty"`
	UpdatedAt string           `json:"updated_at,omitempty"`
	Variants  []ShopifyVariant `json:"variants,omitempty"`
}

// ShopifyVariant is one sellable variant of a product
type ShopifyVariant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id,omitempty"`
	SKU               string `json:"sku,omitempty"`
	Price             string `json:"price,omitempty"`
	InventoryItemID   int64  `json:"inventory_item_id,omitempty"`
	InventoryQuantity int64  `json:"inventory_quantity"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// ShopifyOrder is an order record from the Admin API
type ShopifyOrder struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name,omitempty"`
	Email             string            `json:"email,omitempty"`
	FinancialStatus   string            `json:"financial_status,omitempty"`
	FulfillmentStatus string            `json:"fulfillment_status,omitempty"`
	TotalPrice        string            `json:"total_price,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	CreatedAt         string            `json:"created_at,omitempty"`
	UpdatedAt         string            `json:"updated_at,omitempty"`
	LineItems         []ShopifyLineItem `json:"line_items,omitempty"`
	Customer          *ShopifyCustomer  `json:"customer,omitempty"`
}

// ShopifyLineItem is one line of an order
type ShopifyLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id,omitempty"`
	VariantID int64  `json:"variant_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Title     string `json:"title,omitempty"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price,omitempty"`
}

// ShopifyCustomer is a customer record from the Admin API
type ShopifyCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ShopifyWebhook is a webhook subscription record
type ShopifyWebhook struct {
	ID      int64  `json:"id,omitempty"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format,omitempty"`
}

type shopifyProductsResponse struct {
	Products []ShopifyProduct `json:"products"`
}

type shopifyProductEnvelope struct {
	Product ShopifyProduct `json:"product"`
}

type shopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

type shopifyCustomersResponse struct {
	Customers []ShopifyCustomer `json:"customers"`
}

type shopifyWebhooksResponse struct {
	Webhooks []ShopifyWebhook `json:"webhooks"`
}

type shopifyWebhookEnvelope struct {
	Webhook ShopifyWebhook `json:"webhook"`
}
