package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/transport"
	"github.com/Skotchmaster/bookstore/pkg/logging"
	middleware "github.com/Skotchmaster/bookstore/pkg/middleware/auth"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerTotalCount     = "X-Total-Count"

	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func actor(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Admin: middleware.IsAdmin(c)}
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c, l, "create_order", err)
	}

	order, created, err := h.Svc.PlaceOrder(ctx, actor(c), req, c.Request().Header.Get(headerIdempotencyKey))
	if err != nil {
		return fail(c, l, "create_order", err)
	}

	if !created {
		l.Info("create_order_replayed", "order_id", order.ID)
		return c.JSON(http.StatusOK, order)
	}
	l.Info("create_order_success", "order_id", order.ID, "total", order.TotalAmount.String())
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	orders, err := h.Svc.ListOrdersForUser(ctx, actor(c))
	if err != nil {
		return fail(c, l, "get_orders", err)
	}

	l.Info("get_orders_success", "count", len(orders))
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 404, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, msgOrderNotFound)
	}

	order, err := h.Svc.GetOrder(ctx, actor(c), id)
	if err != nil {
		return fail(c, l, "get_order", err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("update_status_error", "status", 404, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, msgOrderNotFound)
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c, l, "update_status", err)
	}

	order, err := h.Svc.SetStatus(ctx, actor(c), id, req.Status)
	if err != nil {
		return fail(c, l, "update_status", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}

// GetAllOrders lists every order. Without ?page and ?size the whole set is
// returned; the total is always sent in X-Total-Count.
func (h *OrderHTTP) GetAllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_all_orders")

	limit, offset := pageParams(c)

	total, orders, err := h.Svc.ListAllOrders(ctx, actor(c), limit, offset)
	if err != nil {
		return fail(c, l, "get_all_orders", err)
	}

	c.Response().Header().Set(headerTotalCount, strconv.FormatInt(total, 10))
	l.Info("get_all_orders_success", "count", len(orders), "total", total)
	return c.JSON(http.StatusOK, orders)
}

func pageParams(c echo.Context) (limit, offset int) {
	pageRaw, sizeRaw := c.QueryParam("page"), c.QueryParam("size")
	if pageRaw == "" && sizeRaw == "" {
		return 0, 0
	}

	page := parseIntDefault(pageRaw, 1)
	size := parseIntDefault(sizeRaw, defaultPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
