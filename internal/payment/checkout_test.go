package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req CheckoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 93.70, req.Amount)
		assert.Equal(t, "gbp", req.Currency)
		assert.NotEmpty(t, req.ReturnURL)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_123", URL: "https://pay.example/cs_123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", srv.Client())
	session, err := c.CreateSession(context.Background(), CheckoutRequest{
		Amount:    93.70,
		ReturnURL: "https://booking.example/return?payment_success=true",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://pay.example/cs_123", session.URL)
}

func TestCreateSession_RejectsNonPositiveAmount(t *testing.T) {
	c := NewClient("http://unused", "sk-test", nil)

	for _, amount := range []float64{0, -10} {
		_, err := c.CreateSession(context.Background(), CheckoutRequest{Amount: amount})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestCreateSession_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
			},
		},
		{
			name: "missing session id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(CheckoutSession{URL: "https://pay.example/x"})
			},
		},
		{
			name: "missing redirect url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_123"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, "sk-test", srv.Client())
			_, err := c.CreateSession(context.Background(), CheckoutRequest{Amount: 50})
			require.Error(t, err)
			assert.Equal(t, apperr.KindPaymentSession, apperr.KindOf(err))
		})
	}
}
