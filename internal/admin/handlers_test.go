package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/admin"
	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/pricestore"
	"github.com/magnetico/order-api/internal/pricing"
)

const testKey = "secret-key"

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// failingStore makes every durable write fail.
type failingStore struct {
	pricestore.Store
}

func (f *failingStore) Save(context.Context, *model.PriceRecord) error {
	return context.DeadlineExceeded
}

func newTestEnv(t *testing.T, st pricestore.Store) (*pricing.Service, chi.Router) {
	t.Helper()

	if st == nil {
		st = pricestore.NewMemoryStore()
	}
	ps := pricing.New(st, "2500", "test")
	if err := ps.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	h := admin.NewHandler(ps, nil, "test", nil)

	r := chi.NewRouter()
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(admin.RequireKey(testKey))
		r.Get("/price", h.GetPrice)
		r.Put("/price", h.UpdatePrice)
		r.Post("/price/permanent", h.PermanentPrice)
		r.Post("/price/reset", h.ResetPrice)
		r.Get("/stats", h.Stats)
		r.Get("/health", h.Health)
	})
	return ps, r
}

func doAdmin(t *testing.T, router chi.Router, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != "" {
		req.Header.Set("x-admin-key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Authentication ---

func TestRequireKey(t *testing.T) {
	_, router := newTestEnv(t, nil)

	if w := doAdmin(t, router, "GET", "/api/admin/price", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", w.Code)
	}
	if w := doAdmin(t, router, "GET", "/api/admin/price", "wrong", ""); w.Code != http.StatusForbidden {
		t.Errorf("invalid key: expected 403, got %d", w.Code)
	}
	if w := doAdmin(t, router, "GET", "/api/admin/price", testKey, ""); w.Code != http.StatusOK {
		t.Errorf("valid key: expected 200, got %d", w.Code)
	}
}

func TestRequireKey_Unconfigured(t *testing.T) {
	r := chi.NewRouter()
	r.Use(admin.RequireKey(""))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	w := doAdmin(t, r, "GET", "/", "anything", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when no key configured, got %d", w.Code)
	}
}

// --- Price endpoints ---

type updateData struct {
	PreviousPrice decimal.Decimal  `json:"previous_price"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	ChangePercent *decimal.Decimal `json:"change_percent"`
	CurrencyID    string           `json:"currency_id"`
	Persisted     bool             `json:"persisted"`
}

type updateResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error"`
	Code    string     `json:"code"`
	Data    updateData `json:"data"`
}

func TestUpdatePrice_Runtime(t *testing.T) {
	ps, router := newTestEnv(t, nil)

	w := doAdmin(t, router, "PUT", "/api/admin/price", testKey, `{"unit_price": 3000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp updateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Data.NewPrice.Equal(d(3000)) {
		t.Errorf("new price = %s", resp.Data.NewPrice)
	}
	if !resp.Data.PreviousPrice.Equal(d(2500)) {
		t.Errorf("previous price = %s", resp.Data.PreviousPrice)
	}
	if resp.Data.Persisted {
		t.Error("runtime update must not report persisted")
	}
	if resp.Data.ChangePercent == nil || !resp.Data.ChangePercent.Equal(d(20)) {
		t.Errorf("change percent = %v, want 20", resp.Data.ChangePercent)
	}

	if got := ps.CurrentPrice(); !got.Equal(d(3000)) {
		t.Errorf("service price = %s", got)
	}
}

func TestUpdatePrice_AcceptsStringInput(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doAdmin(t, router, "PUT", "/api/admin/price", testKey, `{"unit_price": "3500"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdatePrice_ValidationRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"missing", `{}`, "null_or_missing"},
		{"null", `{"unit_price": null}`, "null_or_missing"},
		{"not a number", `{"unit_price": "abc"}`, "not_a_number"},
		{"non finite", `{"unit_price": "Infinity"}`, "non_finite"},
		{"too low", `{"unit_price": 50}`, "too_low"},
		{"too high", `{"unit_price": 2000000}`, "too_high"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps, router := newTestEnv(t, nil)

			w := doAdmin(t, router, "PUT", "/api/admin/price", testKey, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}

			var resp updateResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Code, tc.code)
			}

			// Rejected writes leave the price untouched.
			if got := ps.CurrentPrice(); !got.Equal(d(2500)) {
				t.Errorf("price changed after rejection: %s", got)
			}
		})
	}
}

func TestPermanentPrice_Success(t *testing.T) {
	ms := pricestore.NewMemoryStore()
	ps, router := newTestEnv(t, ms)

	w := doAdmin(t, router, "POST", "/api/admin/price/permanent", testKey, `{"unit_price": 3500}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp updateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Data.Persisted {
		t.Error("expected persisted result")
	}
	if !resp.Data.NewPrice.Equal(d(3500)) {
		t.Errorf("new price = %s", resp.Data.NewPrice)
	}

	rec, err := ms.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rec.Price.Equal(d(3500)) {
		t.Errorf("durable record = %s", rec.Price)
	}

	if got := ps.CurrentPrice(); !got.Equal(d(3500)) {
		t.Errorf("service price = %s", got)
	}
}

func TestPermanentPrice_StorageFailure(t *testing.T) {
	ps, router := newTestEnv(t, &failingStore{Store: pricestore.NewMemoryStore()})

	w := doAdmin(t, router, "POST", "/api/admin/price/permanent", testKey, `{"unit_price": 3500}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	var resp updateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "PERMANENT_PRICE_UPDATE_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}

	// No partial mutation.
	if got := ps.CurrentPrice(); !got.Equal(d(2500)) {
		t.Errorf("price changed after failed write: %s", got)
	}
}

func TestResetPrice(t *testing.T) {
	ps, router := newTestEnv(t, nil)

	if _, err := ps.SetRuntimePrice(d(5000)); err != nil {
		t.Fatalf("set runtime: %v", err)
	}

	w := doAdmin(t, router, "POST", "/api/admin/price/reset", testKey, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			UnitPrice decimal.Decimal `json:"unit_price"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Data.UnitPrice.Equal(d(2500)) {
		t.Errorf("restored price = %s, want env tier 2500", resp.Data.UnitPrice)
	}
}

func TestStats(t *testing.T) {
	ps, router := newTestEnv(t, nil)

	if _, err := ps.SetRuntimePrice(d(3000)); err != nil {
		t.Fatalf("set runtime: %v", err)
	}

	w := doAdmin(t, router, "GET", "/api/admin/stats", testKey, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			Pricing pricing.Stats `json:"pricing"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Pricing.ActiveTier != "runtime" {
		t.Errorf("active tier = %s", resp.Data.Pricing.ActiveTier)
	}
	if len(resp.Data.Pricing.History) != 1 {
		t.Errorf("history length = %d", len(resp.Data.Pricing.History))
	}
}
