// Package view holds the read models returned by the HTTP API.
package view

import (
	"time"

	"github.com/shopspring/decimal"

	"retail-order-service/internal/entity"
	"retail-order-service/internal/pricing"
	"retail-order-service/internal/repository"
	"retail-order-service/internal/service"
)

type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Tier       entity.Tier     `json:"membership_level"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  entity.Category `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID              int64           `json:"id"`
	Product         Product         `json:"product"`
	Quantity        int64           `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                 int64              `json:"id"`
	Customer           Customer           `json:"customer"`
	Items              []OrderItem        `json:"order_items"`
	TotalAmount        decimal.Decimal    `json:"total_amount"`
	DiscountAmount     decimal.Decimal    `json:"discount_amount"`
	FinalAmount        decimal.Decimal    `json:"final_amount"`
	DiscountPercentage decimal.Decimal    `json:"discount_percentage"`
	Status             entity.OrderStatus `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
}

type PageInfo struct {
	PageNumber    int   `json:"page_number"`
	PageSize      int   `json:"page_size"`
	TotalPages    int64 `json:"total_pages"`
	TotalElements int64 `json:"total_elements"`
	HasNext       bool  `json:"has_next"`
	HasPrevious   bool  `json:"has_previous"`
}

type Page[T any] struct {
	Content  []T      `json:"content"`
	Pageable PageInfo `json:"pageable"`
}

func NewCustomer(c entity.Customer) Customer {
	return Customer{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Tier:       c.Tier,
		TotalSpent: c.TotalSpent,
		Active:     c.Active(),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func NewProduct(p entity.Product) Product {
	return Product{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price,
		Stock:     p.Stock,
		Active:    p.Active(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func NewOrder(d service.OrderDetails) Order {
	o := d.Order
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		p, ok := d.Products[item.ProductID]
		if !ok {
			p = entity.Product{ID: item.ProductID}
		}
		items = append(items, OrderItem{
			ID:              item.ID,
			Product:         NewProduct(p),
			Quantity:        item.Quantity,
			PriceAtPurchase: item.UnitPrice,
			Subtotal:        item.Subtotal(),
		})
	}

	return Order{
		ID:                 o.ID,
		Customer:           NewCustomer(d.Customer),
		Items:              items,
		TotalAmount:        o.TotalAmount,
		DiscountAmount:     o.DiscountAmount,
		FinalAmount:        o.FinalAmount,
		DiscountPercentage: pricing.DiscountPercentage(o.DiscountAmount, o.TotalAmount),
		Status:             o.Status,
		CreatedAt:          o.CreatedAt,
	}
}

// NewPage projects a repository page with conv.
func NewPage[E any, T any](p repository.Page[E], conv func(E) T) Page[T] {
	content := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		content = append(content, conv(item))
	}

	var totalPages int64
	if p.Size > 0 {
		totalPages = (p.Total + int64(p.Size) - 1) / int64(p.Size)
	}
	return Page[T]{
		Content: content,
		Pageable: PageInfo{
			PageNumber:    p.Page,
			PageSize:      p.Size,
			TotalPages:    totalPages,
			TotalElements: p.Total,
			HasNext:       int64(p.Page+1) < totalPages,
			HasPrevious:   p.Page > 0,
		},
	}
}
