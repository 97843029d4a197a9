package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/dto"

	"github.com/labstack/echo/v4"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:                http.StatusBadRequest,
	apperror.KindPaymentVerificationFailed: http.StatusBadRequest,
	apperror.KindForbidden:                 http.StatusForbidden,
	apperror.KindNotFound:                  http.StatusNotFound,
	apperror.KindNotAvailable:              http.StatusConflict,
	apperror.KindInsufficientStock:         http.StatusConflict,
	apperror.KindInvalidTransition:         http.StatusConflict,
	apperror.KindConflict:                  http.StatusConflict,
	apperror.KindGatewayUnavailable:        http.StatusBadGateway,
	apperror.KindTransactionDegraded:       http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error as {"error": {...}}. Unknown errors are
// logged and hidden behind a generic message.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := dto.ErrorBody{Kind: "internal_error", Message: "internal server error"}

		var appErr *apperror.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = StatusFor(appErr.Kind)
			body = dto.ErrorBody{
				Kind:           string(appErr.Kind),
				Message:        appErr.Message,
				AvailableStock: appErr.AvailableStock,
				Allowed:        appErr.AllowedTargets,
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = dto.ErrorBody{Kind: httpKind(status), Message: fmt.Sprint(httpErr.Message)}
		}

		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request().Context(), "request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Any("err", err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, dto.ErrorResponse{Error: body})
		}
		if err != nil {
			log.Error("write error response", slog.Any("err", err))
		}
	}
}

func httpKind(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperror.KindValidation)
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return string(apperror.KindForbidden)
	case http.StatusNotFound:
		return string(apperror.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "http_error"
	}
}
