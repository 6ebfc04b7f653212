package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/entity"
	"retail-order-service/internal/repository"
	"retail-order-service/internal/service"
	"retail-order-service/internal/view"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	// legacy spelling still sent by older clients
	headerIdempotentKey = "Idempotent-Key"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrder --> POST /api/orders
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var in service.CreateOrderInput
	if err := bind(c, &in); err != nil {
		return err
	}
	key := firstNonEmpty(c.Request().Header.Get(HeaderIdempotencyKey), c.Request().Header.Get(headerIdempotentKey))

	order, err := h.orderService.CreateOrder(c.Request().Context(), in, key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view.NewOrder(*order))
}

// GetOrder --> GET /api/orders/:id
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order")
	if err != nil {
		return err
	}
	order, err := h.orderService.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewOrder(*order))
}

// ListOrders --> GET /api/orders?status=&customer_id=&page=&size=
// plus GET /api/orders/customer/:customerId and GET /api/orders/status/:status
func (h *OrderHandler) ListOrders(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	var f repository.OrderFilter
	if raw := firstNonEmpty(c.Param("status"), c.QueryParam("status")); raw != "" {
		status, ok := entity.ParseOrderStatus(raw)
		if !ok {
			return apperror.Validation("Invalid order status", "status: "+raw)
		}
		f.Status = status
	}
	if raw := firstNonEmpty(c.Param("customerId"), c.QueryParam("customer_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return apperror.Validation("Invalid customer ID", "customer_id: "+raw)
		}
		f.CustomerID = id
	}

	result, err := h.orderService.ListOrders(c.Request().Context(), f, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewPage(result, view.NewOrder))
}

// PayOrder --> POST /api/orders/:id/pay
func (h *OrderHandler) PayOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order")
	if err != nil {
		return err
	}
	order, err := h.orderService.PayOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewOrder(*order))
}

// CancelOrder --> POST /api/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	id, err := parseID(c, "id", "order")
	if err != nil {
		return err
	}
	order, err := h.orderService.CancelOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewOrder(*order))
}
