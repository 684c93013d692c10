// Package payment is the client for the hosted checkout-preference API.
// It creates checkout preferences for orders and fetches payment status
// for webhook processing. No payment protocol logic lives here; the
// provider owns the checkout flow end to end.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoToken is returned when no access token is configured.
var ErrNoToken = errors.New("payment: access token not configured")

// Client calls the checkout-preference API over REST.
type Client struct {
	baseURL     string
	token       string
	frontendURL string
	webhookURL  string
	httpc       *http.Client
}

// NewClient creates a payment client. frontendURL feeds the back_urls the
// provider redirects customers to; webhookURL receives status callbacks.
func NewClient(baseURL, token, frontendURL, webhookURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		frontendURL: frontendURL,
		webhookURL:  webhookURL,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Item is one line of a checkout preference.
type Item struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Description string         `json:"description,omitempty"`
	Quantity   int             `json:"quantity"`
	CurrencyID string          `json:"currency_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// PreferenceRequest describes the checkout to create.
type PreferenceRequest struct {
	Items             []Item
	PayerName         string
	PayerEmail        string
	ExternalReference string
}

// Preference is the provider's response: an opaque preference ID plus the
// redirect URL the customer is sent to.
type Preference struct {
	ID              string `json:"id"`
	InitPoint       string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// Payment is the provider's view of a completed or pending payment,
// fetched when a webhook notification arrives.
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail,omitempty"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PayerEmail        string          `json:"payer_email,omitempty"`
}

type preferencePayload struct {
	Items               []Item            `json:"items"`
	Payer               payer             `json:"payer"`
	BackURLs            backURLs          `json:"back_urls"`
	AutoReturn          string            `json:"auto_return"`
	ExternalReference   string            `json:"external_reference,omitempty"`
	NotificationURL     string            `json:"notification_url,omitempty"`
	StatementDescriptor string            `json:"statement_descriptor"`
}

type payer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// CreatePreference creates a hosted checkout preference and returns the
// redirect URL plus the preference identifier.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	payload := preferencePayload{
		Items: req.Items,
		Payer: payer{Name: req.PayerName, Email: req.PayerEmail},
		BackURLs: backURLs{
			Success: c.frontendURL + "/success",
			Failure: c.frontendURL + "/error",
			Pending: c.frontendURL + "/pending",
		},
		AutoReturn:          "approved",
		ExternalReference:   req.ExternalReference,
		NotificationURL:     c.webhookURL,
		StatementDescriptor: "MAGNETICO",
	}

	var pref Preference
	if err := c.post(ctx, "/checkout/preferences", payload, &pref); err != nil {
		return nil, err
	}
	if pref.InitPoint == "" {
		return nil, errors.New("payment: provider returned no checkout URL")
	}
	return &pref, nil
}

// GetPayment fetches the status of a payment by provider ID.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	var p Payment
	if err := c.get(ctx, "/v1/payments/"+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payment: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("payment: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		return fmt.Errorf("payment: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, detail)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// readErrorDetail pulls the provider's message field if there is one.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no detail"
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(data)
}
