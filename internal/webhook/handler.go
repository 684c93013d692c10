// Package webhook handles payment-status callbacks from the checkout
// provider. Processing is single-shot: fetch the payment, notify the
// merchant if it was approved, and acknowledge. Notifications carry no
// idempotency state, so a redelivered event sends a duplicate email.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/magnetico/order-api/internal/mail"
	"github.com/magnetico/order-api/internal/payment"
)

const notifyTimeout = 15 * time.Second

// PaymentFetcher fetches payment status from the provider.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (*mail.SendResult, error)
}

// Handler processes provider notifications.
type Handler struct {
	payments  PaymentFetcher
	mailer    Mailer
	destEmail string
}

// NewHandler creates a webhook handler.
func NewHandler(payments PaymentFetcher, mailer Mailer, destEmail string) *Handler {
	return &Handler{
		payments:  payments,
		mailer:    mailer,
		destEmail: destEmail,
	}
}

// notification is the provider's callback body.
type notification struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Handle processes POST /api/webhook. Always answers 200: the provider
// retries non-2xx responses and a processing failure here must not make
// it hammer the endpoint.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var n notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		slog.Warn("malformed webhook body", "err", err)
		ack(w)
		return
	}

	slog.Info("webhook received", "type", n.Type, "action", n.Action, "payment", n.Data.ID)

	if n.Type != "payment" || n.Data.ID == "" {
		ack(w)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), n.Data.ID)
	if err != nil {
		slog.Error("payment lookup failed", "payment", n.Data.ID, "err", err)
		ack(w)
		return
	}

	slog.Info("payment status",
		"payment", n.Data.ID,
		"status", p.Status,
		"order", p.ExternalReference,
		"amount", p.TransactionAmount.String(),
	)

	if p.Status == "approved" {
		go h.notifyApproved(p)
	}

	ack(w)
}

func (h *Handler) notifyApproved(p *payment.Payment) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	html, err := mail.RenderPaymentNotification(mail.PaymentNotification{
		OrderID: p.ExternalReference,
		Amount:  p.TransactionAmount,
		Status:  p.Status,
	})
	if err != nil {
		slog.Error("payment notification render failed", "order", p.ExternalReference, "err", err)
		return
	}

	if _, err := h.mailer.Send(ctx, mail.Message{
		To:      h.destEmail,
		Subject: "PAGO APROBADO - " + p.ExternalReference,
		HTML:    html,
	}); err != nil {
		slog.Warn("payment notification failed", "order", p.ExternalReference, "err", err)
		return
	}
	slog.Info("payment notification sent", "order", p.ExternalReference)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
