package channels

// WooCommerce REST API v3 wire types. Responses are bare JSON arrays
// rather than envelopes, and timestamps arrive without a zone in the
// *_gmt variants.

// WooProduct is a product record from the REST API
type WooProduct struct {
	ID              int64  `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	SKU             string `json:"sku,omitempty"`
	Status          string `json:"status,omitempty"`
	Description     string `json:"description,omitempty"`
	RegularPrice    string `json:"regular_price,omitempty"`
	Price           string `json:"price,omitempty"`
	StockQuantity   *int64 `json:"stock_quantity,omitempty"`
	ManageStock     bool   `json:"manage_stock,omitempty"`
	DateModifiedGMT string `json:"date_modified_gmt,omitempty"`
}

// WooOrder is an order record from the REST API
type WooOrder struct {
	ID              int64         `json:"id"`
	Number          string        `json:"number,omitempty"`
	Status          string        `json:"status,omitempty"`
	Currency        string        `json:"currency,omitempty"`
	Total           string        `json:"total,omitempty"`
	DateModifiedGMT string        `json:"date_modified_gmt,omitempty"`
	LineItems       []WooLineItem `json:"line_items,omitempty"`
	Billing         *WooBilling   `json:"billing,omitempty"`
}

// WooLineItem is one line of an order
type WooLineItem struct {
	ID        int64  `json:"id,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int64  `json:"quantity"`
	Total     string `json:"total,omitempty"`
}

// WooBilling is the billing contact block of an order
type WooBilling struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// WooWebhook is a webhook subscription record
type WooWebhook struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Topic       string `json:"topic"`
	DeliveryURL string `json:"delivery_url"`
	Status      string `json:"status,omitempty"`
}
