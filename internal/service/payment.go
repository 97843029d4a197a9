package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/client"
	"marketplace-orders/internal/config"
	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
)

type VerifyPaymentRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	ExpectedAmount   decimal.Decimal
}

type VerifiedPayment struct {
	Verified bool
	Payment  *model.Payment
}

// PaymentVerifier decides whether a claimed gateway payment can be trusted.
// It fails closed: any error means "not verified".
type PaymentVerifier interface {
	CreateGatewayOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*model.GatewayOrder, error)
	Verify(ctx context.Context, req VerifyPaymentRequest) (*VerifiedPayment, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error)
	VerifyWebhookSignature(body []byte, signature string) error
}

type paymentVerifierImpl struct {
	gateway       client.PaymentGateway
	signingSecret string
	webhookSecret string
	timeout       time.Duration
	currency      string
	epsilon       decimal.Decimal
	log           *slog.Logger
}

// ErrMissingSecret is returned when a verifier would have to sign with an empty key.
var ErrMissingSecret = errors.New("gateway signing secret is empty")

func NewPaymentVerifier(gateway client.PaymentGateway, cfg *config.Gateway, log *slog.Logger) (PaymentVerifier, error) {
	if cfg.WebhookSecret == "" || cfg.SigningSecret() == "" {
		return nil, ErrMissingSecret
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &paymentVerifierImpl{
		gateway:       gateway,
		signingSecret: cfg.SigningSecret(),
		webhookSecret: cfg.WebhookSecret,
		timeout:       timeout,
		currency:      cfg.Currency,
		epsilon:       cfg.AmountEpsilon,
		log:           log,
	}, nil
}

func (v *paymentVerifierImpl) CreateGatewayOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*model.GatewayOrder, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	order, err := v.gateway.CreateOrder(ctx, amount, v.currency, receipt)
	if err != nil {
		return nil, gatewayError(err)
	}
	return order, nil
}

func (v *paymentVerifierImpl) Verify(ctx context.Context, req VerifyPaymentRequest) (*VerifiedPayment, error) {
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, apperror.Validation("payment proof requires gateway order id, payment id and signature")
	}

	if v.signingSecret == "" {
		return nil, apperror.Wrap(ErrMissingSecret, apperror.KindPaymentVerificationFailed, "payment signature cannot be checked")
	}

	expected := Sign(v.signingSecret, req.GatewayOrderID+"|"+req.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature))) {
		return nil, apperror.PaymentVerification("invalid payment signature")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	payment, err := v.gateway.FetchPayment(ctx, req.GatewayPaymentID)
	if err != nil {
		return nil, gatewayError(err)
	}

	if payment.OrderID != "" && payment.OrderID != req.GatewayOrderID {
		return nil, apperror.PaymentVerification("payment does not belong to gateway order %s", req.GatewayOrderID)
	}

	if payment.Status != model.GatewayPaymentCaptured && payment.Status != model.GatewayPaymentAuthorized {
		return nil, apperror.PaymentVerification("payment not successful (status %s)", payment.Status)
	}

	if payment.Amount.Sub(req.ExpectedAmount).Abs().GreaterThan(v.epsilon) {
		v.log.WarnContext(ctx, "payment amount mismatch",
			slog.String("gateway_payment_id", payment.ID),
			slog.String("gateway_amount", payment.Amount.String()),
			slog.String("expected_amount", req.ExpectedAmount.String()))
		return nil, apperror.PaymentVerification("amount mismatch: paid %s, expected %s",
			payment.Amount.StringFixed(2), req.ExpectedAmount.StringFixed(2))
	}

	currency := payment.Currency
	if currency == "" {
		currency = v.currency
	}

	return &VerifiedPayment{
		Verified: true,
		Payment: &model.Payment{
			GatewayPaymentID: payment.ID,
			GatewayOrderID:   req.GatewayOrderID,
			Amount:           payment.Amount,
			Currency:         currency,
			Status:           payment.Status,
			Method:           payment.Method,
			VerifiedAt:       time.Now(),
		},
	}, nil
}

func (v *paymentVerifierImpl) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	refundID, err := v.gateway.Refund(ctx, paymentID, amount, reason)
	if err != nil {
		return "", gatewayError(err)
	}
	return refundID, nil
}

func (v *paymentVerifierImpl) VerifyWebhookSignature(body []byte, signature string) error {
	if signature == "" {
		return apperror.Validation("missing webhook signature")
	}

	if v.webhookSecret == "" {
		return apperror.Wrap(ErrMissingSecret, apperror.KindPaymentVerificationFailed, "webhook signature cannot be checked")
	}

	expected := Sign(v.webhookSecret, string(body))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return apperror.PaymentVerification("invalid webhook signature")
	}
	return nil
}

// Sign is the hex HMAC-SHA256 of message under secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func gatewayError(err error) error {
	if errors.Is(err, client.ErrGatewayRejected) {
		return apperror.Wrap(err, apperror.KindPaymentVerificationFailed, "payment rejected by gateway")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, client.ErrGatewayUnavailable) {
		return apperror.GatewayUnavailable(err)
	}
	return apperror.GatewayUnavailable(fmt.Errorf("unexpected gateway error: %w", err))
}
