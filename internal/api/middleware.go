package api

import (
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"retail-order-service/internal/auth"
)

// RateLimiter limits requests per client address.
func RateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	deny := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(limit),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return deny(c)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return deny(c)
		},
	})
}

func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// JWTGuard requires a bearer token accepted by issuer on every request
// except reads. The parsed *auth.Claims are stored under "user".
func JWTGuard(issuer *auth.Issuer) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return issuer.Parse(token)
		},
		Skipper: func(c echo.Context) bool {
			m := c.Request().Method
			return m == http.MethodGet || m == http.MethodHead
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token").SetInternal(err)
		},
	})
}

// Register mounts every route under /api. Extra middleware, such as
// JWTGuard, applies to the resource groups but not to the health check.
func Register(e *echo.Echo, customers *CustomerHandler, products *ProductHandler, orders *OrderHandler, guards ...echo.MiddlewareFunc) {
	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "retail-order-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	cg := g.Group("/customers", guards...)
	cg.POST("", customers.CreateCustomer)
	cg.GET("", customers.ListCustomers)
	cg.GET("/membership/:level", customers.ListCustomers)
	cg.GET("/:id", customers.GetCustomer)
	cg.PUT("/:id", customers.UpdateCustomer)
	cg.DELETE("/:id", customers.DeleteCustomer)

	pg := g.Group("/products", guards...)
	pg.POST("", products.CreateProduct)
	pg.GET("", products.ListProducts)
	pg.GET("/search", products.ListProducts)
	pg.GET("/category/:category", products.ListProducts)
	pg.GET("/:id", products.GetProduct)
	pg.PUT("/:id", products.UpdateProduct)
	pg.DELETE("/:id", products.DeleteProduct)

	og := g.Group("/orders", guards...)
	og.POST("", orders.CreateOrder)
	og.GET("", orders.ListOrders)
	og.GET("/customer/:customerId", orders.ListOrders)
	og.GET("/status/:status", orders.ListOrders)
	og.GET("/:id", orders.GetOrder)
	og.POST("/:id/pay", orders.PayOrder)
	og.POST("/:id/cancel", orders.CancelOrder)
}
