package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
)

const (
	msgInvalidBody   = "invalid body"
	msgOrderNotFound = "Order not found"
	msgServerError   = "Server error"
)

type stockErrorResponse struct {
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Available int64  `json:"available"`
	Requested int64  `json:"requested"`
}

// fail logs err under op and turns it into the response for the caller.
// 5xx responses never carry err text.
func fail(c echo.Context, l *slog.Logger, op string, err error) error {
	var (
		verr     *service.ValidationError
		notFound *service.ProductNotFoundError
		stock    *service.InsufficientStockError
	)

	switch {
	case errors.As(err, &verr):
		l.Warn(op+"_error", "status", 400, "reason", "validation", "error", err)
		return c.JSON(http.StatusBadRequest, transport.FieldErrorsResponse{Errors: verr.Fields})

	case errors.As(err, &notFound):
		l.Warn(op+"_error", "status", 400, "reason", "product not found", "product_id", notFound.ProductID)
		return c.JSON(http.StatusBadRequest, transport.MessageResponse{
			Message: fmt.Sprintf("Product %s not found", notFound.ProductID),
		})

	case errors.As(err, &stock):
		l.Warn(op+"_error", "status", 400, "reason", "insufficient stock",
			"product_id", stock.ProductID, "available", stock.Available, "requested", stock.Requested)
		return c.JSON(http.StatusBadRequest, stockErrorResponse{
			Message:   fmt.Sprintf("Insufficient stock for %s", stock.Title),
			ProductID: stock.ProductID.String(),
			Available: stock.Available,
			Requested: stock.Requested,
		})

	case errors.Is(err, service.ErrUnauthorized):
		l.Warn(op+"_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")

	case errors.Is(err, service.ErrForbidden):
		l.Warn(op+"_error", "status", 403, "reason", "forbidden", "error", err)
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")

	case errors.Is(err, service.ErrNotFound):
		l.Warn(op+"_error", "status", 404, "reason", "order not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, msgOrderNotFound)

	case errors.Is(err, service.ErrIdempotencyMismatch):
		l.Warn(op+"_error", "status", 409, "reason", "idempotency key reused", "error", err)
		return echo.NewHTTPError(http.StatusConflict, "Idempotency-Key was already used with a different request")

	case errors.Is(err, service.ErrConflict):
		l.Warn(op+"_error", "status", 409, "reason", "stock race lost", "error", err)
		return echo.NewHTTPError(http.StatusConflict, "Order could not be placed because stock changed, please retry")

	case errors.Is(err, service.ErrCommitTimeout):
		l.Error(op+"_error", "status", 503, "reason", "commit timeout", "error", err)
		c.Response().Header().Set("Retry-After", "1")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Order service is busy, please retry")

	default:
		l.Error(op+"_error", "status", 500, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, msgServerError)
	}
}

// badBody answers a failed c.Bind. A JSON value of the wrong type is reported
// against its field like any other validation failure.
func badBody(c echo.Context, l *slog.Logger, op string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		l.Warn(op+"_error", "status", 400, "reason", "wrong field type", "field", typeErr.Field, "got", typeErr.Value)
		return c.JSON(http.StatusBadRequest, transport.FieldErrorsResponse{Errors: []transport.FieldError{{
			Field:   typeErr.Field,
			Message: "must be " + jsonKind(typeErr.Type),
		}}})
	}

	l.Warn(op+"_error", "status", 400, "reason", "invalid body", "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return "a valid value"
	}
}
