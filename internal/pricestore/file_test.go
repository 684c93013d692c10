package pricestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/pricestore"
)

func testRecord(price int64) *model.PriceRecord {
	return &model.PriceRecord{
		Price:       decimal.NewFromInt(price),
		Currency:    model.Currency,
		LastUpdated: time.Now().UTC().Truncate(time.Second),
		UpdatedBy:   "admin",
		Environment: "test",
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.json")
	fs := pricestore.NewFileStore(path)
	ctx := context.Background()

	if _, err := fs.Load(ctx); !errors.Is(err, pricestore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	rec := testRecord(3500)
	if err := fs.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Price.Equal(rec.Price) {
		t.Errorf("price = %s, want %s", got.Price, rec.Price)
	}
	if got.Currency != rec.Currency || got.UpdatedBy != rec.UpdatedBy || got.Environment != rec.Environment {
		t.Errorf("record fields mismatch: %+v", got)
	}
	if !got.LastUpdated.Equal(rec.LastUpdated) {
		t.Errorf("last updated = %s, want %s", got.LastUpdated, rec.LastUpdated)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.json")
	fs := pricestore.NewFileStore(path)
	ctx := context.Background()

	if err := fs.Save(ctx, testRecord(3000)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fs.Save(ctx, testRecord(4000)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Price.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("price = %s, want 4000", got.Price)
	}

	// Only the record file remains; the temp file was renamed away.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one file in store dir, found %d", len(entries))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := pricestore.NewFileStore(path)
	if _, err := fs.Load(context.Background()); err == nil {
		t.Fatal("expected decode error for corrupt file")
	}
}

func TestMemoryStore_CopySemantics(t *testing.T) {
	ms := pricestore.NewMemoryStore()
	ctx := context.Background()

	rec := testRecord(3000)
	if err := ms.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's record must not affect the stored copy.
	rec.Price = decimal.NewFromInt(1)

	got, err := ms.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Price.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("stored record mutated externally: %s", got.Price)
	}
}
