package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/entity"
	"retail-order-service/internal/repository"
	"retail-order-service/internal/service"
	"retail-order-service/internal/view"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// CreateCustomer --> POST /api/customers
func (h *CustomerHandler) CreateCustomer(c echo.Context) error {
	var in service.CreateCustomerInput
	if err := bind(c, &in); err != nil {
		return err
	}
	customer, err := h.customerService.CreateCustomer(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view.NewCustomer(*customer))
}

// GetCustomer --> GET /api/customers/:id
func (h *CustomerHandler) GetCustomer(c echo.Context) error {
	id, err := parseID(c, "id", "customer")
	if err != nil {
		return err
	}
	customer, err := h.customerService.GetActiveCustomer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewCustomer(*customer))
}

// ListCustomers --> GET /api/customers?tier=&keyword=&page=&size=
// and GET /api/customers/membership/:level
func (h *CustomerHandler) ListCustomers(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	f := repository.CustomerFilter{Keyword: c.QueryParam("keyword")}
	if raw := firstNonEmpty(c.Param("level"), c.QueryParam("tier")); raw != "" {
		tier, ok := entity.ParseTier(raw)
		if !ok {
			return apperror.Validation("Invalid membership level", "tier: "+raw)
		}
		f.Tier = tier
	}
	result, err := h.customerService.ListCustomers(c.Request().Context(), f, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewPage(result, view.NewCustomer))
}

// UpdateCustomer --> PUT /api/customers/:id
func (h *CustomerHandler) UpdateCustomer(c echo.Context) error {
	id, err := parseID(c, "id", "customer")
	if err != nil {
		return err
	}
	var in service.UpdateCustomerInput
	if err := bind(c, &in); err != nil {
		return err
	}
	customer, err := h.customerService.UpdateCustomer(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewCustomer(*customer))
}

// DeleteCustomer --> DELETE /api/customers/:id
func (h *CustomerHandler) DeleteCustomer(c echo.Context) error {
	id, err := parseID(c, "id", "customer")
	if err != nil {
		return err
	}
	if err := h.customerService.DeleteCustomer(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
