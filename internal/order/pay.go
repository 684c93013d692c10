package order

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/payment"
)

// PayRequest is the JSON body for POST /api/pay: a direct checkout
// preference without the multipart order form.
type PayRequest struct {
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Items []PayItem        `json:"items,omitempty"`
}

// PayItem is one requested checkout line; missing fields are normalized.
type PayItem struct {
	ID         string           `json:"id,omitempty"`
	Title      string           `json:"title,omitempty"`
	Quantity   int              `json:"quantity,omitempty"`
	CurrencyID string           `json:"currency_id,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreatePayment handles POST /api/pay. It normalizes the requested items
// and creates a checkout preference directly.
func (s *Service) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, "email is required", http.StatusBadRequest)
		return
	}

	items := s.normalizeItems(req)

	pref, err := s.payments.CreatePreference(r.Context(), payment.PreferenceRequest{
		Items:      items,
		PayerName:  req.Name,
		PayerEmail: req.Email,
	})
	if err != nil {
		slog.Error("payment preference failed", "email", req.Email, "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, payment.ErrNoToken) {
			status = http.StatusInternalServerError
		}
		writeError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pref)
}

// normalizeItems fills item defaults: fallback title from the customer
// name and the resolved unit price when none is given.
func (s *Service) normalizeItems(req PayRequest) []payment.Item {
	fallbackPrice := s.pricing.CurrentPrice()
	if req.Price != nil {
		fallbackPrice = *req.Price
	}

	name := req.Name
	if name == "" {
		name = "Cliente"
	}

	if len(req.Items) == 0 {
		return []payment.Item{{
			ID:         "fotomagnetico",
			Title:      "Pedido de " + name,
			Quantity:   1,
			CurrencyID: model.Currency,
			UnitPrice:  fallbackPrice,
		}}
	}

	items := make([]payment.Item, 0, len(req.Items))
	for _, it := range req.Items {
		out := payment.Item{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			CurrencyID: it.CurrencyID,
		}
		if out.ID == "" {
			out.ID = "fotomagnetico"
		}
		if out.Title == "" {
			out.Title = "Pedido de " + name
		}
		if out.Quantity <= 0 {
			out.Quantity = 1
		}
		if out.CurrencyID == "" {
			out.CurrencyID = model.Currency
		}
		if it.UnitPrice != nil {
			out.UnitPrice = *it.UnitPrice
		} else {
			out.UnitPrice = fallbackPrice
		}
		items = append(items, out)
	}
	return items
}
