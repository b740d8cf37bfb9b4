package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPaymentVerifier(t *testing.T) {
	v := NewMockPaymentVerifier()
	ctx := context.Background()
	amount := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		token    string
		accepted bool
		tendered decimal.Decimal
	}{
		{name: "accepts any token", token: "tok_123", accepted: true, tendered: amount},
		{name: "rejects empty token", token: "", accepted: false, tendered: decimal.Zero},
		{name: "rejects reject prefix", token: "reject-me", accepted: false, tendered: decimal.Zero},
		{name: "partial tender", token: "partial:40.5", accepted: true, tendered: decimal.RequireFromString("40.5")},
		{name: "malformed partial", token: "partial:abc", accepted: false, tendered: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := v.Verify(ctx, PaymentRequest{Token: tt.token, Amount: amount, Reference: "b1"})
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, out.Accepted)
			assert.True(t, tt.tendered.Equal(out.TenderedAmount), "tendered %s", out.TenderedAmount)
		})
	}
}

func TestHTTPPaymentVerifier_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/verify", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body gatewayVerifyReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok", body.Token)
		assert.Equal(t, "250", body.Amount)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"accepted":true,"amount":"250.00","transaction_id":"tx-1"}}`))
	}))
	defer srv.Close()

	v := NewHTTPPaymentVerifier(srv.URL+"/", "key", time.Second)
	out, err := v.Verify(context.Background(), PaymentRequest{Token: "tok", Amount: decimal.NewFromInt(250)})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.True(t, out.TenderedAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "tx-1", out.TransactionID)
}

func TestHTTPPaymentVerifier_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"success":false,"message":"card declined"}`))
	}))
	defer srv.Close()

	v := NewHTTPPaymentVerifier(srv.URL, "", time.Second)
	out, err := v.Verify(context.Background(), PaymentRequest{Token: "tok", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
}

func TestHTTPPaymentVerifier_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewHTTPPaymentVerifier(srv.URL, "", time.Second)
	_, err := v.Verify(context.Background(), PaymentRequest{Token: "tok", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
}
