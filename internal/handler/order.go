package handler

import (
	"net/http"
	"strconv"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/dto"
	"marketplace-orders/internal/middleware"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/service"

	"github.com/labstack/echo/v4"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	TransactionDegradedHeader = "X-Transaction-Degraded"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func actorFrom(c echo.Context) service.Actor {
	id, _ := c.Get(middleware.UserIDKey).(string)
	role, _ := c.Get(middleware.RoleKey).(string)
	return service.Actor{ID: id, Role: service.Role(role)}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	actor := actorFrom(c)
	result, err := h.orderService.CreateOrder(ctx, actor.ID, c.Request().Header.Get(IdempotencyKeyHeader), &req)
	if err != nil {
		return err
	}

	if result.Degraded {
		c.Response().Header().Set(TransactionDegradedHeader, "true")
	}

	resp := &dto.OrderResponse{Order: result.Order}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
		resp.Duplicate = true
		resp.Kind = string(apperror.KindDuplicateRequest)
	}

	return c.JSON(status, resp)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("id"), actorFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.OrderResponse{Order: order})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.OrderFilter{}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return apperror.Validation("limit must be a number")
		}
		filter.Limit = limit
	}
	if v := c.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return apperror.Validation("offset must be a non-negative number")
		}
		filter.Offset = offset
	}
	if v := c.QueryParam("status"); v != "" {
		status, err := model.ParseOrderStatus(v)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	orders, total, err := h.orderService.ListOrders(ctx, actorFrom(c), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.OrderListResponse{
		Orders: orders,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return err
	}

	order, err := h.orderService.UpdateStatus(ctx, c.Param("id"), actorFrom(c), service.StatusChange{
		Status:         status,
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.OrderResponse{Order: order})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}

	order, err := h.orderService.Cancel(ctx, c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.OrderResponse{Order: order})
}
