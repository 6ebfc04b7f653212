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

type ProductHandler struct {
	productService *service.ProductService
}

// NewProductHandler creates a new instance of ProductHandler
func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// CreateProduct --> POST /api/products
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var in service.CreateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	product, err := h.productService.CreateProduct(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view.NewProduct(*product))
}

// GetProduct --> GET /api/products/:id
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id", "product")
	if err != nil {
		return err
	}
	product, err := h.productService.GetActiveProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewProduct(*product))
}

// ListProducts --> GET /api/products?category=&keyword=&page=&size=
// plus GET /api/products/category/:category and GET /api/products/search?keyword=
func (h *ProductHandler) ListProducts(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	f := repository.ProductFilter{Keyword: c.QueryParam("keyword")}
	if raw := firstNonEmpty(c.Param("category"), c.QueryParam("category")); raw != "" {
		category, ok := entity.ParseCategory(raw)
		if !ok {
			return apperror.Validation("Invalid category", "category: "+raw)
		}
		f.Category = category
	}
	result, err := h.productService.ListProducts(c.Request().Context(), f, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewPage(result, view.NewProduct))
}

// UpdateProduct --> PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, "id", "product")
	if err != nil {
		return err
	}
	var in service.UpdateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	product, err := h.productService.UpdateProduct(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view.NewProduct(*product))
}

// DeleteProduct --> DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id", "product")
	if err != nil {
		return err
	}
	if err := h.productService.DeleteProduct(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
