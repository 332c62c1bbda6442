package stripe

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultEventTTL       = 24 * time.Hour
	defaultConnectCountry = "US"
)

// Config holds the complete Stripe configuration
type Config struct {
	APIKey         string        `json:"api_key"`
	WebhookSecret  string        `json:"webhook_secret"`
	ConnectCountry string        `json:"connect_country"`
	EventTTL       time.Duration `json:"event_ttl"`
}

// NewConfig returns a Stripe configuration with defaults applied. It fails
// when the keys do not look like Stripe keys.
func NewConfig(apiKey, webhookSecret string) (*Config, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe API key is required")
	}
	if !strings.HasPrefix(apiKey, "sk_") && !strings.HasPrefix(apiKey, "rk_") {
		return nil, fmt.Errorf("stripe API key must be a secret or restricted key")
	}
	if webhookSecret != "" && !strings.HasPrefix(webhookSecret, "whsec_") {
		return nil, fmt.Errorf("stripe webhook secret must start with whsec_")
	}
	return &Config{
		APIKey:         apiKey,
		WebhookSecret:  webhookSecret,
		ConnectCountry: defaultConnectCountry,
		EventTTL:       defaultEventTTL,
	}, nil
}

// LiveMode reports whether the configured key operates on live data.
func (c *Config) LiveMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_live_") || strings.HasPrefix(c.APIKey, "rk_live_")
}
