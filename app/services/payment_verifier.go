package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPaymentGatewayUnavailable is returned when the gateway cannot give a verdict
var ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentRequest describes the charge a boost owner is settling
type PaymentRequest struct {
	Token     string
	Amount    decimal.Decimal
	Reference string
}

// PaymentVerification is the gateway verdict for a payment token
type PaymentVerification struct {
	Accepted       bool
	TenderedAmount decimal.Decimal
	TransactionID  string
}

// PaymentVerifier checks an opaque payment token against the payment provider
type PaymentVerifier interface {
	Name() string
	Verify(ctx context.Context, req PaymentRequest) (*PaymentVerification, error)
}

// HTTPPaymentVerifier talks to a JSON payment gateway
type HTTPPaymentVerifier struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewHTTPPaymentVerifier(baseURL, apiKey string, timeout time.Duration) *HTTPPaymentVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPaymentVerifier{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

func (c *HTTPPaymentVerifier) Name() string { return "http_gateway" }

type gatewayVerifyReq struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

type gatewayVerifyResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Accepted      bool   `json:"accepted"`
		Amount        string `json:"amount"`
		TransactionID string `json:"transaction_id"`
	} `json:"data"`
}

// Verify posts the token to {BaseURL}/payments/verify
func (c *HTTPPaymentVerifier) Verify(ctx context.Context, in PaymentRequest) (*PaymentVerification, error) {
	body, err := json.Marshal(gatewayVerifyReq{
		Token:     in.Token,
		Amount:    in.Amount.String(),
		Reference: in.Reference,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrPaymentGatewayUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out gatewayVerifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	// 4xx carries a rejection verdict in the same envelope
	if resp.StatusCode != http.StatusOK || !out.Success {
		return &PaymentVerification{Accepted: false, TenderedAmount: decimal.Zero}, nil
	}

	tendered := decimal.Zero
	if out.Data.Amount != "" {
		tendered, err = decimal.NewFromString(out.Data.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid tendered amount %q: %w", out.Data.Amount, err)
		}
	}

	return &PaymentVerification{
		Accepted:       out.Data.Accepted,
		TenderedAmount: tendered,
		TransactionID:  out.Data.TransactionID,
	}, nil
}

// MockPaymentVerifier accepts every non-empty token and tenders the requested amount.
// Tokens starting with "reject" are declined; tokens of the form "partial:<amount>" tender <amount>.
type MockPaymentVerifier struct{}

func NewMockPaymentVerifier() PaymentVerifier { return MockPaymentVerifier{} }

func (MockPaymentVerifier) Name() string { return "mock" }

func (MockPaymentVerifier) Verify(_ context.Context, in PaymentRequest) (*PaymentVerification, error) {
	switch {
	case in.Token == "", strings.HasPrefix(in.Token, "reject"):
		return &PaymentVerification{Accepted: false, TenderedAmount: decimal.Zero}, nil
	case strings.HasPrefix(in.Token, "partial:"):
		amount, err := decimal.NewFromString(strings.TrimPrefix(in.Token, "partial:"))
		if err != nil {
			return &PaymentVerification{Accepted: false, TenderedAmount: decimal.Zero}, nil
		}
		return &PaymentVerification{Accepted: true, TenderedAmount: amount, TransactionID: "mock-" + in.Reference}, nil
	default:
		return &PaymentVerification{Accepted: true, TenderedAmount: in.Amount, TransactionID: "mock-" + in.Reference}, nil
	}
}
