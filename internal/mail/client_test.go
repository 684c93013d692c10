package mail_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/magnetico/order-api/internal/mail"
)

func TestSend_SimulatedWithoutKey(t *testing.T) {
	c := mail.NewClient("http://unused", "", "Shop <no-reply@example.com>")

	res, err := c.Send(context.Background(), mail.Message{
		To:      "ventas@example.com",
		Subject: "test",
		HTML:    "<p>hola</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Simulated {
		t.Error("expected simulated send without API key")
	}
}

func TestSend_PostsToProvider(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"id": "email-1"})
	}))
	defer srv.Close()

	c := mail.NewClient(srv.URL, "re_key", "Shop <no-reply@example.com>")
	res, err := c.Send(context.Background(), mail.Message{
		To:      "ventas@example.com",
		Subject: "Nuevo pedido",
		HTML:    "<p>hola</p>",
		ReplyTo: "cliente@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if res.ID != "email-1" || res.Simulated {
		t.Errorf("result = %+v", res)
	}
	if auth != "Bearer re_key" {
		t.Errorf("authorization = %q", auth)
	}
	if got["from"] != "Shop <no-reply@example.com>" {
		t.Errorf("from = %v", got["from"])
	}
	if got["to"] != "ventas@example.com" {
		t.Errorf("to = %v", got["to"])
	}
	if got["reply_to"] != "cliente@example.com" {
		t.Errorf("reply_to = %v", got["reply_to"])
	}
}

func TestSend_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid recipient", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := mail.NewClient(srv.URL, "re_key", "Shop <no-reply@example.com>")
	if _, err := c.Send(context.Background(), mail.Message{To: "bad"}); err == nil {
		t.Error("expected error on provider rejection")
	}
}

func TestRenderOrderNotification(t *testing.T) {
	html, err := mail.RenderOrderNotification(mail.OrderNotification{
		OrderID:    "ORD-AB12CD34",
		Name:       "Ana",
		Email:      "ana@example.com",
		PhotoCount: 4,
		Total:      decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"ORD-AB12CD34", "Ana", "ana@example.com", "$10000"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q", want)
		}
	}
	// Optional fields stay out of the body when empty.
	if strings.Contains(html, "Teléfono") {
		t.Error("empty phone should not render")
	}
}

func TestRenderPaymentNotification(t *testing.T) {
	html, err := mail.RenderPaymentNotification(mail.PaymentNotification{
		OrderID: "ORD-XY98ZW76",
		Amount:  decimal.NewFromInt(10000),
		Status:  "approved",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "ORD-XY98ZW76") || !strings.Contains(html, "approved") {
		t.Errorf("body = %s", html)
	}
}
