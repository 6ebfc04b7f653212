package repository

import (
	"context"
	"errors"
	"strings"

	"retail-order-service/internal/entity"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a stock decrement would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStatusConflict is returned when an order is no longer in the expected status.
	ErrStatusConflict = errors.New("order status conflict")
	// ErrDuplicate is returned when a unique constraint among active records is violated.
	ErrDuplicate = errors.New("duplicate")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a zero-based page number and a page size.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the page to >= 0 and the size to 1..MaxPageSize.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int64
}

type CustomerFilter struct {
	Tier    entity.Tier
	Keyword string
}

type ProductFilter struct {
	Category entity.Category
	Keyword  string
}

type OrderFilter struct {
	CustomerID int64
	Status     entity.OrderStatus
}

// CustomerRepository stores customers. List and the Active lookups only see
// records whose lifecycle is ACTIVE.
type CustomerRepository interface {
	Create(ctx context.Context, c *entity.Customer) error
	GetByID(ctx context.Context, id int64) (*entity.Customer, error)
	GetActiveByID(ctx context.Context, id int64) (*entity.Customer, error)
	ExistsActiveEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, c *entity.Customer) error
	List(ctx context.Context, f CustomerFilter, p PageRequest) (Page[entity.Customer], error)
}

// ProductRepository stores products.
type ProductRepository interface {
	Create(ctx context.Context, p *entity.Product) error
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	GetActiveByID(ctx context.Context, id int64) (*entity.Product, error)
	ExistsActiveName(ctx context.Context, name string, excludeID int64) (bool, error)
	Update(ctx context.Context, p *entity.Product) error
	// AdjustStock adds delta to the stock of product id atomically. A negative
	// delta that would leave the stock below zero fails with ErrInsufficientStock
	// and changes nothing.
	AdjustStock(ctx context.Context, id int64, delta int64) (*entity.Product, error)
	List(ctx context.Context, f ProductFilter, p PageRequest) (Page[entity.Product], error)
}

// OrderRepository stores orders together with their items.
type OrderRepository interface {
	Create(ctx context.Context, o *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	// UpdateStatus moves order id from -> to. It fails with ErrStatusConflict
	// when the stored status is not from.
	UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus) error
	List(ctx context.Context, f OrderFilter, p PageRequest) (Page[entity.Order], error)
	CountItemsByProductAndStatus(ctx context.Context, productID int64, status entity.OrderStatus) (int64, error)
}

// TxManager runs fn inside a transaction. Calls made with a context that is
// already inside a transaction join it instead of starting a new one.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func paginate[T any](all []T, p PageRequest) Page[T] {
	p = p.Normalize()
	out := Page[T]{Page: p.Page, Size: p.Size, Total: int64(len(all)), Items: []T{}}
	start := p.Offset()
	if start >= len(all) {
		return out
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	out.Items = append(out.Items, all[start:end]...)
	return out
}
