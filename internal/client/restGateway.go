package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
)

// restGateway talks to a Razorpay-style REST API with basic auth.
type restGateway struct {
	httpClient *http.Client
	baseApiURL string
	keyID      string
	keySecret  string
	exp        int32
}

func NewRestGateway(cfg *config.Gateway) PaymentGateway {
	return &restGateway{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseApiURL: cfg.BaseApiURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		exp:        cfg.MinorUnitExponent,
	}
}

type restOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type restPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

type restRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *restGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*model.GatewayOrder, error) {
	payload := map[string]interface{}{
		"amount":   ToMinorUnits(amount, c.exp),
		"currency": currency,
		"receipt":  receipt,
	}

	var result restOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &result); err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}

	return &model.GatewayOrder{
		ID:       result.ID,
		Amount:   FromMinorUnits(result.Amount, c.exp),
		Currency: result.Currency,
		Receipt:  result.Receipt,
		Status:   result.Status,
	}, nil
}

func (c *restGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	var result restPayment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &result); err != nil {
		return nil, fmt.Errorf("gateway fetch payment: %w", err)
	}

	return &model.GatewayPayment{
		ID:       result.ID,
		OrderID:  result.OrderID,
		Status:   result.Status,
		Amount:   FromMinorUnits(result.Amount, c.exp),
		Currency: result.Currency,
		Method:   result.Method,
	}, nil
}

func (c *restGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error) {
	payload := map[string]interface{}{
		"amount": ToMinorUnits(amount, c.exp),
		"notes": map[string]string{
			"reason": reason,
		},
	}

	var result restRefund
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return "", fmt.Errorf("gateway refund: %w", err)
	}

	return result.ID, nil
}

func (c *restGateway) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status=%d body=%s", ErrGatewayUnavailable, resp.StatusCode, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status=%d body=%s", ErrGatewayRejected, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
