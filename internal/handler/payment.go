package handler

import (
	"io"
	"net/http"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/dto"
	"marketplace-orders/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	verifier       service.PaymentVerifier
	webhookService service.WebhookService
}

func NewPaymentHandler(verifier service.PaymentVerifier, webhookService service.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		verifier:       verifier,
		webhookService: webhookService,
	}
}

func (h *PaymentHandler) CreatePaymentOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreatePaymentOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	order, err := h.verifier.CreateGatewayOrder(ctx, req.Amount, req.Receipt)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, order)
}

func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	result, err := h.verifier.Verify(ctx, service.VerifyPaymentRequest{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		ExpectedAmount:   req.Amount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.VerifyPaymentResponse{
		Verified: result.Verified,
		Payment:  result.Payment,
	})
}

// Webhook acknowledges every signed delivery with 200, whatever happened inside.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperror.Validation("unreadable webhook body")
	}

	result, err := h.webhookService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"duplicate": result.Duplicate,
	})
}
