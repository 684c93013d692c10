// Package config provides runtime configuration values for the service.
// Everything is read once from the environment at startup.
package config

import (
	"os"
	"strings"
)

// Config holds configuration knobs for the HTTP server, price resolution,
// and the external payment and mail collaborators.
type Config struct {
	Port        string
	Environment string

	// AdminKey is the shared secret for the admin endpoints. Empty means
	// admin endpoints refuse all requests.
	AdminKey string

	// UnitPrice is the raw PRODUCT_UNIT_PRICE value; parsed (and possibly
	// rejected) by the pricing service, not here.
	UnitPrice string

	// PriceFile is the JSON file holding the permanent price record when
	// no database is configured.
	PriceFile string

	DatabaseURL string
	RedisURL    string

	// Payment collaborator (hosted checkout-preference API).
	PaymentBaseURL string
	PaymentToken   string

	// Mail collaborator (transactional email API).
	MailBaseURL      string
	MailAPIKey       string
	MailFrom         string
	DestinationEmail string

	// FrontendURL is the customer-facing site checkout redirects back to.
	FrontendURL string

	// WebhookURL is the publicly reachable payment-notification endpoint.
	WebhookURL string

	MaintenanceMode bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		Port:             getenv("PORT", "8080"),
		Environment:      getenv("ENVIRONMENT", "development"),
		AdminKey:         os.Getenv("ADMIN_KEY"),
		UnitPrice:        os.Getenv("PRODUCT_UNIT_PRICE"),
		PriceFile:        getenv("PRICE_FILE", "price-config.json"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		PaymentBaseURL:   getenv("MP_BASE_URL", "https://api.mercadopago.com"),
		PaymentToken:     os.Getenv("MP_ACCESS_TOKEN"),
		MailBaseURL:      getenv("MAIL_BASE_URL", "https://api.resend.com"),
		MailAPIKey:       os.Getenv("RESEND_API_KEY"),
		MailFrom:         getenv("MAIL_FROM", "Magnético <notificaciones@magnetico.com>"),
		DestinationEmail: os.Getenv("DESTINATION_EMAIL"),
		FrontendURL:      strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:5173"), "/"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),
		MaintenanceMode:  os.Getenv("MAINTENANCE_MODE") == "true",
	}
}
