package pricestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/model"
)

// PostgresStore implements Store using PostgreSQL. The price is stored as
// NUMERIC for exact decimal precision; a fixed-id row keeps exactly one
// active record per deployment.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) (*model.PriceRecord, error) {
	var rec model.PriceRecord
	var price string

	err := s.pool.QueryRow(ctx,
		`SELECT price::TEXT, currency, last_updated, updated_by, environment
		 FROM price_config WHERE id = 1`).
		Scan(&price, &rec.Currency, &rec.LastUpdated, &rec.UpdatedBy, &rec.Environment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load price record: %w", err)
	}

	rec.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decode stored price %q: %w", price, err)
	}
	return &rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *model.PriceRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_config (id, price, currency, last_updated, updated_by, environment)
		 VALUES (1, $1::NUMERIC, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   price = EXCLUDED.price,
		   currency = EXCLUDED.currency,
		   last_updated = EXCLUDED.last_updated,
		   updated_by = EXCLUDED.updated_by,
		   environment = EXCLUDED.environment`,
		rec.Price.String(), rec.Currency, rec.LastUpdated, rec.UpdatedBy, rec.Environment,
	)
	if err != nil {
		return fmt.Errorf("save price record: %w", err)
	}
	return nil
}
