package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"marketplace-orders/internal/model"

	"github.com/braintree-go/braintree-go"
	"github.com/stretchr/testify/assert"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("braintree status %d", int(e)) }
func (e statusError) StatusCode() int { return int(e) }

func TestBraintreeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"transaction not found", statusError(http.StatusNotFound), ErrGatewayRejected},
		{"refund declined", statusError(http.StatusUnprocessableEntity), ErrGatewayRejected},
		{"validation error without status", &braintree.BraintreeError{ErrorMessage: "Cannot refund transaction unless it is settled."}, ErrGatewayRejected},
		{"server error", statusError(http.StatusInternalServerError), ErrGatewayUnavailable},
		{"maintenance", statusError(http.StatusServiceUnavailable), ErrGatewayUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), ErrGatewayUnavailable},
		{"timeout", context.DeadlineExceeded, ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := braintreeError(fmt.Errorf("wrapped: %w", tt.err))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBraintreeStatus(t *testing.T) {
	assert.Equal(t, model.GatewayPaymentAuthorized, braintreeStatus(braintree.TransactionStatusAuthorized))
	assert.Equal(t, model.GatewayPaymentCaptured, braintreeStatus(braintree.TransactionStatusSettled))
	assert.Equal(t, model.GatewayPaymentFailed, braintreeStatus(braintree.TransactionStatusProcessorDeclined))
}
