// Package pricestore defines durable storage for the unit-price record.
// Implementations include a JSON file (default), PostgreSQL, Redis as a
// read-through cache with cross-instance invalidation, and in-memory
// (for testing).
package pricestore

import (
	"context"
	"errors"

	"github.com/magnetico/order-api/internal/model"
)

// ErrNotFound is returned by Load when no price record has been saved yet.
var ErrNotFound = errors.New("pricestore: no price record")

// Store is the persistence interface for the single active price record.
type Store interface {
	// Load retrieves the current price record, or ErrNotFound.
	Load(ctx context.Context) (*model.PriceRecord, error)

	// Save overwrites the price record. The write is all-or-nothing.
	Save(ctx context.Context, rec *model.PriceRecord) error
}
