// Package mail is the client for the transactional email API. Delivery is
// delegated entirely to the provider; this package only builds and posts
// messages. When no API key is configured, sends are simulated and logged
// so order intake keeps working in development.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client posts messages to a Resend-style email API.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	httpc   *http.Client
}

// NewClient creates a mail client. An empty apiKey puts the client in
// simulated mode.
func NewClient(baseURL, apiKey, from string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// SendResult reports how a message was handled.
type SendResult struct {
	ID        string `json:"id,omitempty"`
	Simulated bool   `json:"simulated,omitempty"`
}

// Send posts a message to the provider. In simulated mode it logs and
// reports success without any network call.
func (c *Client) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if c.apiKey == "" {
		slog.Info("mail not configured, simulating send",
			"to", msg.To, "subject", msg.Subject)
		return &SendResult{Simulated: true}, nil
	}

	payload := struct {
		From string `json:"from"`
		Message
	}{From: c.from, Message: msg}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mail: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mail: send: status %d: %s", resp.StatusCode, detail)
	}

	var result SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("mail: decode response: %w", err)
	}
	return &result, nil
}

// OrderNotification holds the fields rendered into the merchant email.
type OrderNotification struct {
	OrderID    string
	Name       string
	Email      string
	Phone      string
	Address    string
	PhotoCount int
	Total      decimal.Decimal
	CreatedAt  time.Time
}

var orderTmpl = template.Must(template.New("order").Parse(`<h2>Nuevo pedido recibido</h2>
<div style="background: #f8f9fa; padding: 20px; border-radius: 10px;">
  <h3>Datos del cliente</h3>
  <p><strong>Nombre:</strong> {{.Name}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{if .Phone}}<p><strong>Teléfono:</strong> {{.Phone}}</p>{{end}}
  {{if .Address}}<p><strong>Dirección:</strong> {{.Address}}</p>{{end}}
  <p><strong>Fotos:</strong> {{.PhotoCount}}</p>
  <p><strong>Total:</strong> ${{.Total}}</p>
  <p><strong>ID de pedido:</strong> {{.OrderID}}</p>
  <p><strong>Fecha:</strong> {{.CreatedAt.Format "02/01/2006 15:04"}}</p>
</div>`))

// RenderOrderNotification builds the merchant notification body.
func RenderOrderNotification(n OrderNotification) (string, error) {
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("mail: render order notification: %w", err)
	}
	return buf.String(), nil
}

var paymentTmpl = template.Must(template.New("payment").Parse(`<h2>Pago aprobado</h2>
<div style="background: #f8f9fa; padding: 20px; border-radius: 10px;">
  <p><strong>Pedido:</strong> {{.OrderID}}</p>
  <p><strong>Monto:</strong> ${{.Amount}}</p>
  <p><strong>Estado:</strong> {{.Status}}</p>
</div>`))

// PaymentNotification holds the fields rendered into the payment email.
type PaymentNotification struct {
	OrderID string
	Amount  decimal.Decimal
	Status  string
}

// RenderPaymentNotification builds the payment-approved body.
func RenderPaymentNotification(n PaymentNotification) (string, error) {
	var buf bytes.Buffer
	if err := paymentTmpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("mail: render payment notification: %w", err)
	}
	return buf.String(), nil
}
