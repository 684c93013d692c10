// Package order implements order intake: it validates the multipart order
// form, prices the order, creates a hosted checkout preference, and fires
// the merchant notification email in the background. Orders are not stored;
// the payment provider holds the authoritative record via the external
// reference.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/mail"
	"github.com/magnetico/order-api/internal/metrics"
	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/payment"
	"github.com/magnetico/order-api/internal/pricing"
)

// Upload limits for the order form.
const (
	MinPhotos      = 4
	MaxPhotos      = 15
	MaxFileSize    = 8 << 20  // 8MB per photo
	maxFormMemory  = 32 << 20 // multipart parse buffer
	mailTimeout    = 15 * time.Second
)

// Service handles order intake and the public config surface.
type Service struct {
	pricing     *pricing.Service
	payments    *payment.Client
	mailer      *mail.Client
	destEmail   string
	environment string
	maintenance bool
	cfg         configCache
}

// NewService creates an order-intake service.
func NewService(ps *pricing.Service, pc *payment.Client, mc *mail.Client, destEmail, environment string, maintenance bool) *Service {
	return &Service{
		pricing:     ps,
		payments:    pc,
		mailer:      mc,
		destEmail:   destEmail,
		environment: environment,
		maintenance: maintenance,
	}
}

// CreateResponse is the JSON body returned from POST /api/order.
type CreateResponse struct {
	Success         bool        `json:"success"`
	Message         string      `json:"message"`
	OrderID         string      `json:"orderId"`
	Payment         PaymentInfo `json:"payment"`
	PhotosProcessed int         `json:"photosProcessed"`
	Timestamp       time.Time   `json:"timestamp"`
}

// PaymentInfo carries the checkout redirect returned to the customer.
type PaymentInfo struct {
	InitPoint    string          `json:"init_point"`
	PreferenceID string          `json:"preference_id"`
	Total        decimal.Decimal `json:"total"`
}

// Create handles POST /api/order. Responds as soon as the checkout
// preference exists; the merchant email goes out in the background so a
// slow mail provider cannot stall checkout.
func (s *Service) Create(w http.ResponseWriter, r *http.Request) {
	orderID := newOrderID()

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	phone := strings.TrimSpace(r.FormValue("phone"))
	address := strings.TrimSpace(r.FormValue("address"))

	var photos []*multipart.FileHeader
	if r.MultipartForm != nil {
		photos = r.MultipartForm.File["photos"]
	}

	if name == "" || email == "" {
		metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		writeError(w, "name and email are required", http.StatusBadRequest)
		return
	}
	if len(photos) < MinPhotos {
		metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		writeError(w, fmt.Sprintf("at least %d photos are required", MinPhotos), http.StatusBadRequest)
		return
	}
	if len(photos) > MaxPhotos {
		metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		writeError(w, fmt.Sprintf("at most %d photos are allowed", MaxPhotos), http.StatusBadRequest)
		return
	}
	for _, ph := range photos {
		if ph.Size > MaxFileSize {
			metrics.OrdersTotal.WithLabelValues("rejected").Inc()
			writeError(w, fmt.Sprintf("photo %s exceeds the %dMB limit", ph.Filename, MaxFileSize>>20), http.StatusBadRequest)
			return
		}
	}

	photoCount := len(photos)
	unitPrice := s.pricing.CurrentPrice()
	total := unitPrice.Mul(decimal.NewFromInt(int64(photoCount)))

	pref, err := s.payments.CreatePreference(r.Context(), payment.PreferenceRequest{
		Items: []payment.Item{{
			ID:          "fotomagnetico",
			Title:       fmt.Sprintf("%d Fotos Imantadas Magnético", photoCount),
			Description: fmt.Sprintf("Pedido de %s - %d fotos personalizadas", name, photoCount),
			Quantity:    photoCount,
			CurrencyID:  model.Currency,
			UnitPrice:   unitPrice,
		}},
		PayerName:         name,
		PayerEmail:        email,
		ExternalReference: orderID,
	})
	if err != nil {
		slog.Error("checkout preference failed", "order", orderID, "err", err)
		metrics.OrdersTotal.WithLabelValues("payment_failed").Inc()
		writeError(w, "could not create payment: "+err.Error(), http.StatusBadGateway)
		return
	}

	slog.Info("order accepted",
		"order", orderID,
		"name", name,
		"photos", photoCount,
		"unit_price", unitPrice.String(),
		"total", total.String(),
		"preference", pref.ID,
	)
	metrics.OrdersTotal.WithLabelValues("accepted").Inc()
	metrics.OrderPhotos.Observe(float64(photoCount))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateResponse{
		Success:         true,
		Message:         "order accepted, redirecting to checkout",
		OrderID:         orderID,
		Payment:         PaymentInfo{InitPoint: pref.InitPoint, PreferenceID: pref.ID, Total: total},
		PhotosProcessed: photoCount,
		Timestamp:       time.Now().UTC(),
	})

	// Merchant notification runs detached from the request; a mail failure
	// is logged, never surfaced to the customer.
	go s.notifyMerchant(mail.OrderNotification{
		OrderID:    orderID,
		Name:       name,
		Email:      email,
		Phone:      phone,
		Address:    address,
		PhotoCount: photoCount,
		Total:      total,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *Service) notifyMerchant(n mail.OrderNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	html, err := mail.RenderOrderNotification(n)
	if err != nil {
		slog.Error("merchant notification render failed", "order", n.OrderID, "err", err)
		return
	}

	result, err := s.mailer.Send(ctx, mail.Message{
		To:      s.destEmail,
		Subject: "NUEVO PEDIDO - " + n.OrderID,
		HTML:    html,
		ReplyTo: n.Email,
	})
	if err != nil {
		slog.Warn("merchant notification failed, order continues", "order", n.OrderID, "err", err)
		return
	}
	slog.Info("merchant notified", "order", n.OrderID, "simulated", result.Simulated)
}

// newOrderID generates a short human-readable order reference.
func newOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
