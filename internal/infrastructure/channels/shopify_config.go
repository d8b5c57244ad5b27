package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/channelsync/backend/internal/domain/channel"
)

// ShopifyConfig holds credentials and endpoint settings for one
// Shopify store connection
type ShopifyConfig struct {
	// ShopDomain is the myshopify domain, e.g. "acme.myshopify.com"
	ShopDomain string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIVersion selects the Admin API version, e.g. "2024-01"
	APIVersion string
	// WebhookSecret signs incoming webhook payloads
	WebhookSecret string
	// APIBaseURL overrides the derived endpoint; used in tests
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// ShopifyDefaultAPIVersion is the Admin API version used when the
// channel config does not pin one
const ShopifyDefaultAPIVersion = "2024-01"

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingDomain = errors.New("shopify: shop domain is required")
	ErrShopifyConfigMissingToken  = errors.New("shopify: access token is required")
)

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(shopDomain, accessToken string) *ShopifyConfig {
	return &ShopifyConfig{
		ShopDomain:     shopDomain,
		AccessToken:    accessToken,
		APIVersion:     ShopifyDefaultAPIVersion,
		TimeoutSeconds: 30,
	}
}

// ShopifyConfigFromChannel builds a config from a channel's stored
// connection settings
func ShopifyConfigFromChannel(ch *channel.Channel) (*ShopifyConfig, error) {
	cfg := &ShopifyConfig{
		ShopDomain:    ch.ConfigString("shop_domain"),
		AccessToken:   ch.ConfigString("access_token"),
		APIVersion:    ch.ConfigString("api_version"),
		WebhookSecret: ch.ConfigString("webhook_secret"),
		APIBaseURL:    ch.ConfigString("api_base_url"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and fills defaults
func (c *ShopifyConfig) Validate() error {
	if c.ShopDomain == "" && c.APIBaseURL == "" {
		return ErrShopifyConfigMissingDomain
	}
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingToken
	}
	if c.APIVersion == "" {
		c.APIVersion = ShopifyDefaultAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Endpoint returns the absolute URL for an Admin API path such as
// "products.json"
func (c *ShopifyConfig) Endpoint(path string) string {
	base := c.APIBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", c.ShopDomain, c.APIVersion)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// VerifyWebhookSignature checks the X-Shopify-Hmac-Sha256 header
// against the raw request body. Shopify signs with HMAC-SHA256 over
// the body, base64 encoded.
func (c *ShopifyConfig) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
