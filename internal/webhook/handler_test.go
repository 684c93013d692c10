package webhook_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/mail"
	"github.com/magnetico/order-api/internal/payment"
	"github.com/magnetico/order-api/internal/webhook"
)

type stubFetcher struct {
	payment *payment.Payment
	err     error
	calls   int
}

func (s *stubFetcher) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

type stubMailer struct {
	sent chan mail.Message
}

func (s *stubMailer) Send(_ context.Context, msg mail.Message) (*mail.SendResult, error) {
	s.sent <- msg
	return &mail.SendResult{Simulated: true}, nil
}

func post(t *testing.T, h *webhook.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func TestHandle_ApprovedPaymentNotifiesMerchant(t *testing.T) {
	fetcher := &stubFetcher{payment: &payment.Payment{
		ID:                123456,
		Status:            "approved",
		ExternalReference: "ORD-AB12CD34",
		TransactionAmount: decimal.NewFromInt(10000),
	}}
	mailer := &stubMailer{sent: make(chan mail.Message, 1)}
	h := webhook.NewHandler(fetcher, mailer, "ventas@example.com")

	w := post(t, h, `{"type":"payment","action":"payment.updated","data":{"id":"123456"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	select {
	case msg := <-mailer.sent:
		if msg.To != "ventas@example.com" {
			t.Errorf("recipient = %q", msg.To)
		}
		if !strings.Contains(msg.Subject, "ORD-AB12CD34") {
			t.Errorf("subject = %q", msg.Subject)
		}
		if !strings.Contains(msg.HTML, "ORD-AB12CD34") {
			t.Error("notification body missing order reference")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
	}
}

func TestHandle_PendingPaymentIsAcknowledgedWithoutNotification(t *testing.T) {
	fetcher := &stubFetcher{payment: &payment.Payment{
		ID:     123,
		Status: "pending",
	}}
	mailer := &stubMailer{sent: make(chan mail.Message, 1)}
	h := webhook.NewHandler(fetcher, mailer, "ventas@example.com")

	w := post(t, h, `{"type":"payment","data":{"id":"123"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	select {
	case <-mailer.sent:
		t.Fatal("pending payment must not notify")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandle_IgnoresNonPaymentEvents(t *testing.T) {
	fetcher := &stubFetcher{}
	h := webhook.NewHandler(fetcher, &stubMailer{sent: make(chan mail.Message, 1)}, "x@example.com")

	w := post(t, h, `{"type":"merchant_order","data":{"id":"999"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fetcher.calls != 0 {
		t.Errorf("provider queried %d times for a non-payment event", fetcher.calls)
	}
}

func TestHandle_AlwaysAcknowledges(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"empty body", ``},
		{"missing id", `{"type":"payment","data":{}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := webhook.NewHandler(&stubFetcher{}, &stubMailer{sent: make(chan mail.Message, 1)}, "x@example.com")
			if w := post(t, h, tc.body); w.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", w.Code)
			}
		})
	}
}

func TestHandle_LookupFailureStillAcknowledged(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("provider down")}
	h := webhook.NewHandler(fetcher, &stubMailer{sent: make(chan mail.Message, 1)}, "x@example.com")

	w := post(t, h, `{"type":"payment","data":{"id":"777"}}`)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite lookup failure, got %d", w.Code)
	}
	if fetcher.calls != 1 {
		t.Errorf("calls = %d", fetcher.calls)
	}
}
