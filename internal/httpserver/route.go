package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	pkgdb "github.com/Skotchmaster/bookstore/pkg/db"
	middleware "github.com/Skotchmaster/bookstore/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHTTP
	JWTSecret      []byte
	AuthClient     middleware.Refresher
	DB             *gorm.DB
	MetricsHandler http.Handler
	Version        string
}

func Register(e *echo.Echo, d *Deps) {
	started := time.Now()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(started).Seconds(),
		})
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := pkgdb.Ping(c.Request().Context(), d.DB); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(d.MetricsHandler))
	}

	e.GET("/api", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"message": "Bookstore order API is running",
			"version": d.Version,
			"endpoints": map[string]string{
				"orders":      "/api/orders",
				"adminOrders": "/api/orders/admin/all",
			},
		})
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	orders := e.Group("/api/orders")
	orders.POST("", d.OrderHandler.CreateOrder, authMW.RequireAuth)
	orders.GET("", d.OrderHandler.GetOrders, authMW.RequireAuth)
	orders.GET("/admin/all", d.OrderHandler.GetAllOrders, authMW.RequireAdmin)
	orders.GET("/:id", d.OrderHandler.GetOrder, authMW.RequireAuth)
	orders.PUT("/:id/status", d.OrderHandler.UpdateStatus, authMW.RequireAdmin)
}
