// Package pricing owns the current unit price. The price is resolved
// through a strict priority chain — runtime override > persisted record >
// environment default > hard default — with every candidate passing the
// same validation gate. Writes append to a bounded in-process change log.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/pricestore"
)

// Business bounds for the unit price, in ARS.
var (
	// MinPrice is the lowest accepted unit price.
	MinPrice = decimal.NewFromInt(100)

	// MaxPrice is the highest accepted unit price.
	MaxPrice = decimal.NewFromInt(100000)

	// DefaultPrice is the hard fallback when no other tier resolves.
	// Always within [MinPrice, MaxPrice], so resolution cannot fail.
	DefaultPrice = decimal.NewFromInt(2000)
)

// maxHistory bounds the in-process change log. Oldest entries are evicted.
const maxHistory = 50

// ChangeSource tags which operation produced a change record.
type ChangeSource string

const (
	SourceAdminRuntime   ChangeSource = "admin_runtime"
	SourceAdminPermanent ChangeSource = "admin_permanent"
	SourceReset          ChangeSource = "reset"
)

// ChangeRecord is an immutable audit entry for one price change.
type ChangeRecord struct {
	OldPrice      decimal.Decimal  `json:"old_price"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	Source        ChangeSource     `json:"source"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// UpdateResult is returned from permanent price updates.
type UpdateResult struct {
	OldPrice      decimal.Decimal  `json:"old_price"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	Persisted     bool             `json:"persisted"`
}

// TierValue reports the raw value held at one resolution tier.
type TierValue struct {
	Set   bool             `json:"set"`
	Value *decimal.Decimal `json:"value,omitempty"`
}

// Stats is a read-only diagnostic snapshot of the service.
type Stats struct {
	CurrentPrice    decimal.Decimal `json:"current_price"`
	ActiveTier      string          `json:"active_tier"`
	Currency        string          `json:"currency"`
	Runtime         TierValue       `json:"runtime"`
	Persisted       TierValue       `json:"persisted"`
	Environment     TierValue       `json:"environment"`
	Default         decimal.Decimal `json:"default"`
	RuntimeActive   bool            `json:"runtime_active"`
	PersistedActive bool            `json:"persisted_active"`
	History         []ChangeRecord  `json:"history"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// ValidationResult reifies validation as data for callers that prefer a
// result object over an error.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Kind  ValidationKind   `json:"error,omitempty"`
}

// Service resolves and updates the unit price. State is explicit rather
// than package-global so tests can run independent instances. A single
// mutex serializes writes; reads take the same lock, which is cheap for
// a handful of fields.
type Service struct {
	store       pricestore.Store
	environment string

	mu         sync.RWMutex
	runtime    *decimal.Decimal
	persisted  *decimal.Decimal
	envDefault *decimal.Decimal
	history    []ChangeRecord

	now func() time.Time
}

// New creates a price service backed by st. envPrice is the raw value of
// the PRODUCT_UNIT_PRICE environment variable ("" when unset); an invalid
// value is logged and the tier is skipped. The persisted mirror is empty
// until Reload is called.
func New(st pricestore.Store, envPrice, environment string) *Service {
	s := &Service{
		store:       st,
		environment: environment,
		now:         func() time.Time { return time.Now().UTC() },
	}

	if envPrice != "" {
		p, err := ParsePrice(envPrice)
		if err != nil {
			slog.Warn("invalid PRODUCT_UNIT_PRICE, skipping environment tier",
				"value", envPrice, "err", err)
		} else {
			s.envDefault = &p
		}
	}

	return s
}

// Reload reads the durable price record into the in-memory mirror.
// A missing record clears the mirror; an invalid stored price is skipped
// with a warning. Called at startup and on cross-instance invalidation.
func (s *Service) Reload(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, pricestore.ErrNotFound) {
			s.mu.Lock()
			s.persisted = nil
			s.mu.Unlock()
			return nil
		}
		return err
	}

	p, err := Validate(rec.Price)
	if err != nil {
		slog.Warn("persisted price record is out of bounds, skipping tier",
			"price", rec.Price.String(), "err", err)
		return nil
	}

	s.mu.Lock()
	s.persisted = &p
	s.mu.Unlock()
	return nil
}

// Invalidate drops the local runtime override and refreshes the persisted
// mirror. Used when another instance performed a permanent update.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.runtime = nil
	s.mu.Unlock()
	return s.Reload(ctx)
}

// CurrentPrice resolves the active unit price through the tier chain.
// Never fails: invalid tiers are skipped and the hard default backstops
// the chain, because price lookup sits on the order-creation path.
func (s *Service) CurrentPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, _ := s.resolveLocked()
	return p
}

// resolveLocked walks the tier chain. Caller holds at least a read lock.
func (s *Service) resolveLocked() (decimal.Decimal, string) {
	for _, tier := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"runtime", s.runtime},
		{"persisted", s.persisted},
		{"environment", s.envDefault},
	} {
		if tier.value == nil {
			continue
		}
		p, err := Validate(*tier.value)
		if err != nil {
			slog.Warn("skipping invalid price tier", "tier", tier.name,
				"value", tier.value.String(), "err", err)
			continue
		}
		return p, tier.name
	}
	return DefaultPrice, "default"
}

// ParsePrice converts raw text input into a validated price. This is the
// boundary where number-like input is accepted; beyond it everything is a
// decimal. Empty or "null" input is NullOrMissing; text that only parses
// as an infinite float is NonFinite; everything else unparseable is
// NotANumber.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"`)
	if raw == "" || raw == "null" {
		return decimal.Decimal{}, &ValidationError{Kind: KindNullOrMissing}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		// decimal rejects Inf and NaN outright; classify them separately.
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && (math.IsInf(f, 0) || math.IsNaN(f)) {
			return decimal.Decimal{}, &ValidationError{Kind: KindNonFinite}
		}
		return decimal.Decimal{}, &ValidationError{Kind: KindNotANumber}
	}

	return Validate(d)
}

// Validate is the single gate every candidate price passes through.
// On success it returns the value rounded to 2 decimal places; rounding
// is idempotent, so re-validating a validated price is a no-op.
func Validate(v decimal.Decimal) (decimal.Decimal, error) {
	if v.LessThan(MinPrice) {
		return decimal.Decimal{}, &ValidationError{Kind: KindTooLow}
	}
	if v.GreaterThan(MaxPrice) {
		return decimal.Decimal{}, &ValidationError{Kind: KindTooHigh}
	}
	return v.Round(2), nil
}

// ValidateExternal runs the same rules as ParsePrice but reports the
// outcome as data instead of an error.
func ValidateExternal(raw string) ValidationResult {
	p, err := ParsePrice(raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return ValidationResult{Valid: false, Kind: verr.Kind}
		}
		return ValidationResult{Valid: false, Kind: KindNotANumber}
	}
	return ValidationResult{Valid: true, Price: &p}
}

// SetRuntimePrice sets the in-memory override. The change is lost on
// restart and never touches durable storage.
func (s *Service) SetRuntimePrice(v decimal.Decimal) (decimal.Decimal, error) {
	p, err := Validate(v)
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, _ := s.resolveLocked()
	s.runtime = &p
	s.appendHistoryLocked(old, p, SourceAdminRuntime)

	slog.Info("runtime price updated", "old", old.String(), "new", p.String())
	return p, nil
}

// SetPermanentPrice writes the price to durable storage and mirrors it
// into the runtime override so reads reflect it immediately. All-or-
// nothing: if the durable write fails, no visible state changes and a
// StorageError is returned.
func (s *Service) SetPermanentPrice(ctx context.Context, v decimal.Decimal) (*UpdateResult, error) {
	p, err := Validate(v)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, _ := s.resolveLocked()
	ts := s.now()

	rec := &model.PriceRecord{
		Price:       p,
		Currency:    model.Currency,
		LastUpdated: ts,
		UpdatedBy:   "admin",
		Environment: s.environment,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		slog.Error("permanent price write failed", "price", p.String(), "err", err)
		return nil, &StorageError{Err: err}
	}

	s.persisted = &p
	s.runtime = &p
	rec2 := s.appendHistoryLocked(old, p, SourceAdminPermanent)

	slog.Info("permanent price updated", "old", old.String(), "new", p.String())
	return &UpdateResult{
		OldPrice:      old,
		NewPrice:      p,
		ChangePercent: rec2.ChangePercent,
		Timestamp:     ts,
		Persisted:     true,
	}, nil
}

// ResetRuntimePrice clears the runtime override, letting resolution fall
// through to the persisted/environment/default tiers. Always succeeds.
func (s *Service) ResetRuntimePrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, _ := s.resolveLocked()
	s.runtime = nil
	restored, _ := s.resolveLocked()
	s.appendHistoryLocked(old, restored, SourceReset)

	slog.Info("runtime price reset", "old", old.String(), "restored", restored.String())
	return restored
}

// Stats returns a diagnostic snapshot with the most recent change records
// in reverse-chronological order.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current, tier := s.resolveLocked()

	hist := make([]ChangeRecord, len(s.history))
	for i, rec := range s.history {
		hist[len(s.history)-1-i] = rec
	}

	return Stats{
		CurrentPrice:    current,
		ActiveTier:      tier,
		Currency:        model.Currency,
		Runtime:         tierValue(s.runtime),
		Persisted:       tierValue(s.persisted),
		Environment:     tierValue(s.envDefault),
		Default:         DefaultPrice,
		RuntimeActive:   s.runtime != nil,
		PersistedActive: s.persisted != nil,
		History:         hist,
		GeneratedAt:     s.now(),
	}
}

// History returns up to n most recent change records, newest first.
func (s *Service) History(n int) []ChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]ChangeRecord, n)
	for i := 0; i < n; i++ {
		out[i] = s.history[len(s.history)-1-i]
	}
	return out
}

func tierValue(v *decimal.Decimal) TierValue {
	if v == nil {
		return TierValue{}
	}
	c := *v
	return TierValue{Set: true, Value: &c}
}

// appendHistoryLocked records a change and evicts the oldest entry past
// maxHistory. Caller holds the write lock.
func (s *Service) appendHistoryLocked(old, new decimal.Decimal, src ChangeSource) ChangeRecord {
	rec := ChangeRecord{
		OldPrice:  old,
		NewPrice:  new,
		Source:    src,
		Timestamp: s.now(),
	}
	if !old.IsZero() {
		pct := new.Sub(old).Div(old).Mul(decimal.NewFromInt(100)).Round(2)
		rec.ChangePercent = &pct
	}

	s.history = append(s.history, rec)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	return rec
}
