package order

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/metrics"
	"github.com/magnetico/order-api/internal/model"
)

// configTTL is how long a public config snapshot stays fresh.
const configTTL = 5 * time.Minute

// PublicConfig is the frontend-facing configuration snapshot.
type PublicConfig struct {
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CurrencyID  string          `json:"currency_id"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Environment string          `json:"environment"`
	Features    Features        `json:"features"`
	Maintenance bool            `json:"maintenance"`
}

// Features advertises the upload limits the frontend must enforce.
type Features struct {
	MinPhotos        int      `json:"min_photos"`
	MaxPhotos        int      `json:"max_photos"`
	MaxFileSize      int64    `json:"max_file_size"`
	SupportedFormats []string `json:"supported_formats"`
}

// configCache holds one TTL'd snapshot of the public config. It lives
// on the Service so independent instances do not share state.
type configCache struct {
	mu   sync.Mutex
	snap *PublicConfig
	at   time.Time
}

// snapshot returns the cached config, rebuilding it after configTTL.
func (s *Service) snapshot() PublicConfig {
	s.cfg.mu.Lock()
	defer s.cfg.mu.Unlock()

	if s.cfg.snap != nil && time.Since(s.cfg.at) < configTTL {
		return *s.cfg.snap
	}

	st := s.pricing.Stats()
	metrics.PriceReadsTotal.WithLabelValues(st.ActiveTier).Inc()

	snap := PublicConfig{
		UnitPrice:   st.CurrentPrice,
		CurrencyID:  model.Currency,
		UpdatedAt:   time.Now().UTC(),
		Environment: s.environment,
		Features: Features{
			MinPhotos:        MinPhotos,
			MaxPhotos:        MaxPhotos,
			MaxFileSize:      MaxFileSize,
			SupportedFormats: []string{"JPEG", "PNG", "WebP"},
		},
		Maintenance: s.maintenance,
	}
	s.cfg.snap = &snap
	s.cfg.at = time.Now()
	return snap
}

// InvalidateConfigCache drops the snapshot so the next read re-resolves
// the price. Called after admin price updates.
func (s *Service) InvalidateConfigCache() {
	s.cfg.mu.Lock()
	s.cfg.snap = nil
	s.cfg.mu.Unlock()
}

// GetConfig handles GET /api/config.
func (s *Service) GetConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    snap,
	})
}

// GetPrice handles GET /api/config/price with the flat shape the
// frontend expects.
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"unit_price":  snap.UnitPrice,
		"currency_id": snap.CurrencyID,
		"updated_at":  snap.UpdatedAt,
	})
}
