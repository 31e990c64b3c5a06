package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
)

// CheckoutSession is a hosted payment page created for one booking.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutRequest describes the payment to collect.
type CheckoutRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	ReturnURL   string            `json:"return_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Client creates hosted checkout sessions with the payment provider.
type Client interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a checkout provider client.
func NewClient(baseURL, apiKey string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

func (c *client) CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.Amount <= 0 {
		return CheckoutSession{}, apperr.NewValidationError("checkout amount must be positive")
	}
	if req.Currency == "" {
		req.Currency = "gbp"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return CheckoutSession{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(payload))
	if err != nil {
		return CheckoutSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, apperr.NewPaymentSessionError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return CheckoutSession{}, apperr.NewPaymentSessionError(
			fmt.Errorf("checkout endpoint %d: %s", resp.StatusCode, string(b)))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, apperr.NewPaymentSessionError(err)
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, apperr.NewPaymentSessionError(
			fmt.Errorf("incomplete checkout session response"))
	}
	return session, nil
}
