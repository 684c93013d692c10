package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/magnetico/order-api/internal/metrics"
	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/pricing"
)

// Handler serves the price-administration endpoints. All routes behind it
// must be wrapped with RequireKey.
type Handler struct {
	pricing     *pricing.Service
	hub         *Hub // optional price-feed hub
	environment string
	onChange    func() // optional hook, e.g. public config cache invalidation
}

// NewHandler creates an admin handler. hub and onChange may be nil.
func NewHandler(ps *pricing.Service, hub *Hub, environment string, onChange func()) *Handler {
	return &Handler{
		pricing:     ps,
		hub:         hub,
		environment: environment,
		onChange:    onChange,
	}
}

// priceUpdateRequest accepts unit_price as a JSON number or string; the
// pricing service parses it at this boundary rather than coercing.
type priceUpdateRequest struct {
	UnitPrice json.RawMessage `json:"unit_price"`
}

// GetPrice handles GET /api/admin/price.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price := h.pricing.CurrentPrice()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"unit_price":  price,
			"currency_id": model.Currency,
			"updated_at":  time.Now().UTC(),
			"environment": h.environment,
		},
		"metadata": map[string]any{
			"request_id": requestID(r),
			"note":       "use POST /price/permanent for changes that survive restarts",
		},
	})
}

// UpdatePrice handles PUT /api/admin/price: a runtime-only update, lost
// on restart.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	candidate, err := pricing.ParsePrice(string(req.UnitPrice))
	if err != nil {
		h.rejectValidation(w, r, err)
		return
	}

	newPrice, err := h.pricing.SetRuntimePrice(candidate)
	if err != nil {
		h.rejectValidation(w, r, err)
		return
	}
	rec := pricingRecentChange(h.pricing)
	h.changed(rec)
	metrics.PriceUpdatesTotal.WithLabelValues(string(pricing.SourceAdminRuntime)).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "price updated",
		"data": map[string]any{
			"previous_price": rec.OldPrice,
			"new_price":      newPrice,
			"change_percent": rec.ChangePercent,
			"currency_id":    model.Currency,
			"updated_at":     rec.Timestamp,
			"persisted":      false,
		},
		"metadata": map[string]any{
			"request_id": requestID(r),
			"warning":    "in-memory change, lost on restart",
		},
	})
}

// PermanentPrice handles POST /api/admin/price/permanent: writes the
// durable record and mirrors the value into the runtime override.
func (h *Handler) PermanentPrice(w http.ResponseWriter, r *http.Request) {
	var req priceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	candidate, err := pricing.ParsePrice(string(req.UnitPrice))
	if err != nil {
		h.rejectValidation(w, r, err)
		return
	}

	result, err := h.pricing.SetPermanentPrice(r.Context(), candidate)
	if err != nil {
		var verr *pricing.ValidationError
		if errors.As(err, &verr) {
			h.rejectValidation(w, r, err)
			return
		}
		slog.Error("permanent price update failed", "request_id", requestID(r), "err", err)
		metrics.PriceUpdateFailures.WithLabelValues("storage").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "could not persist the price change",
			"code":    "PERMANENT_PRICE_UPDATE_ERROR",
			"metadata": map[string]any{
				"request_id": requestID(r),
				"note":       "transient server error, safe to retry",
			},
		})
		return
	}
	h.changed(pricingRecentChange(h.pricing))
	metrics.PriceUpdatesTotal.WithLabelValues(string(pricing.SourceAdminPermanent)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "price updated permanently",
		"data": map[string]any{
			"previous_price": result.OldPrice,
			"new_price":      result.NewPrice,
			"change_percent": result.ChangePercent,
			"currency_id":    model.Currency,
			"updated_at":     result.Timestamp,
			"persisted":      true,
		},
		"metadata": map[string]any{
			"request_id": requestID(r),
			"note":       "this change survives server restarts",
		},
	})
}

// ResetPrice handles POST /api/admin/price/reset: clears the runtime
// override so resolution falls back to persisted/environment/default.
func (h *Handler) ResetPrice(w http.ResponseWriter, r *http.Request) {
	restored := h.pricing.ResetRuntimePrice()
	h.changed(pricingRecentChange(h.pricing))
	metrics.PriceUpdatesTotal.WithLabelValues(string(pricing.SourceReset)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "runtime price reset",
		"data": map[string]any{
			"unit_price":  restored,
			"currency_id": model.Currency,
			"updated_at":  time.Now().UTC(),
		},
		"metadata": map[string]any{"request_id": requestID(r)},
	})
}

// Stats handles GET /api/admin/stats with the pricing diagnostic snapshot.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"pricing":     h.pricing.Stats(),
			"environment": h.environment,
		},
		"metadata": map[string]any{
			"request_id":   requestID(r),
			"generated_at": time.Now().UTC(),
		},
	})
}

// Health handles GET /api/admin/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "admin",
		"timestamp": time.Now().UTC(),
		"authentication": map[string]any{
			"required": true,
			"method":   "x-admin-key",
		},
	})
}

// rejectValidation answers a validation failure as a caller error.
func (h *Handler) rejectValidation(w http.ResponseWriter, r *http.Request, err error) {
	kind := pricing.KindNotANumber
	var verr *pricing.ValidationError
	if errors.As(err, &verr) {
		kind = verr.Kind
	}

	slog.Warn("price update rejected", "request_id", requestID(r), "kind", string(kind))
	metrics.PriceUpdateFailures.WithLabelValues(string(kind)).Inc()

	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   err.Error(),
		"code":    string(kind),
		"metadata": map[string]any{"request_id": requestID(r)},
	})
}

// changed fans a successful price change out to the WebSocket feed and
// the invalidation hook.
func (h *Handler) changed(rec *pricing.ChangeRecord) {
	if h.onChange != nil {
		h.onChange()
	}
	if h.hub != nil && rec != nil {
		h.hub.BroadcastChange(*rec)
	}
}

// pricingRecentChange returns the newest change record, if any.
func pricingRecentChange(ps *pricing.Service) *pricing.ChangeRecord {
	hist := ps.History(1)
	if len(hist) == 0 {
		return nil
	}
	return &hist[0]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
