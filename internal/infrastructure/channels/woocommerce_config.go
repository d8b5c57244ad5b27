package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/channelsync/backend/internal/domain/channel"
)

// WooCommerceConfig holds credentials and endpoint settings for one
// WooCommerce store connection. Authentication uses the REST API
// consumer key pair over HTTPS basic auth.
type WooCommerceConfig struct {
	// StoreURL is the site root, e.g. "https://shop.example.com"
	StoreURL string
	// ConsumerKey is the REST API consumer key (ck_...)
	ConsumerKey string
	// ConsumerSecret is the REST API consumer secret (cs_...)
	ConsumerSecret string
	// WebhookSecret signs incoming webhook payloads
	WebhookSecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for WooCommerce configuration
var (
	ErrWooConfigMissingStoreURL = errors.New("woocommerce: store URL is required")
	ErrWooConfigMissingKey      = errors.New("woocommerce: consumer key is required")
	ErrWooConfigMissingSecret   = errors.New("woocommerce: consumer secret is required")
)

// NewWooCommerceConfig creates a WooCommerce configuration with defaults
func NewWooCommerceConfig(storeURL, consumerKey, consumerSecret string) *WooCommerceConfig {
	return &WooCommerceConfig{
		StoreURL:       storeURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		TimeoutSeconds: 30,
	}
}

// WooCommerceConfigFromChannel builds a config from a channel's stored
// connection settings
func WooCommerceConfigFromChannel(ch *channel.Channel) (*WooCommerceConfig, error) {
	cfg := &WooCommerceConfig{
		StoreURL:       ch.ConfigString("store_url"),
		ConsumerKey:    ch.ConfigString("consumer_key"),
		ConsumerSecret: ch.ConfigString("consumer_secret"),
		WebhookSecret:  ch.ConfigString("webhook_secret"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and fills defaults
func (c *WooCommerceConfig) Validate() error {
	if c.StoreURL == "" {
		return ErrWooConfigMissingStoreURL
	}
	if c.ConsumerKey == "" {
		return ErrWooConfigMissingKey
	}
	if c.ConsumerSecret == "" {
		return ErrWooConfigMissingSecret
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Endpoint returns the absolute URL for a REST API path such as
// "products"
func (c *WooCommerceConfig) Endpoint(path string) string {
	return strings.TrimSuffix(c.StoreURL, "/") + "/wp-json/wc/v3/" + strings.TrimPrefix(path, "/")
}

// VerifyWebhookSignature checks the X-WC-Webhook-Signature header
// against the raw request body. WooCommerce signs with HMAC-SHA256
// over the body, base64 encoded.
func (c *WooCommerceConfig) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
