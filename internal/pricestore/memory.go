package pricestore

import (
	"context"
	"sync"

	"github.com/magnetico/order-api/internal/model"
)

// MemoryStore implements Store with an in-memory record. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu  sync.RWMutex
	rec *model.PriceRecord
}

// NewMemoryStore creates a new in-memory store with no record.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*model.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rec == nil {
		return nil, ErrNotFound
	}
	// Return a copy to avoid external mutation.
	copy := *s.rec
	return &copy, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *model.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rec
	s.rec = &copy
	return nil
}
