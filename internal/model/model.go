// Package model defines the core domain types shared across the order API.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the single currency the shop charges in.
const Currency = "ARS"

// PriceRecord is the durable unit-price record. Exactly one record is
// active per deployment; permanent price updates overwrite it in place.
// Price history is never written to durable storage.
type PriceRecord struct {
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"last_updated"`
	UpdatedBy   string          `json:"updated_by"`
	Environment string          `json:"environment"`
}

// OrderSummary captures the outcome of order intake: the priced order and
// the hosted-checkout redirect the customer is sent to. Orders are not
// stored durably; this is a response shape, not a persisted entity.
type OrderSummary struct {
	OrderID       string          `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	PhotoCount    int             `json:"photo_count"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Total         decimal.Decimal `json:"total"`
	PreferenceID  string          `json:"preference_id"`
	CheckoutURL   string          `json:"checkout_url"`
	CreatedAt     time.Time       `json:"created_at"`
}
