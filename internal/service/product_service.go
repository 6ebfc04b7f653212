package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/cache"
	"retail-order-service/internal/entity"
	"retail-order-service/internal/repository"
)

type CreateProductInput struct {
	Name     string          `json:"name" validate:"required,min=3,max=100"`
	Category entity.Category `json:"category" validate:"required,oneof=ELECTRONICS FASHION FOOD"`
	Price    decimal.Decimal `json:"price" validate:"-"`
	Stock    int64           `json:"stock" validate:"gte=0"`
}

// UpdateProductInput changes only the fields that are set. Active=false
// deactivates the product, Active=true restores a deactivated one.
type UpdateProductInput struct {
	Name     *string          `json:"name" validate:"omitnil,min=3,max=100"`
	Category *entity.Category `json:"category" validate:"omitnil,oneof=ELECTRONICS FASHION FOOD"`
	Price    *decimal.Decimal `json:"price" validate:"-"`
	Stock    *int64           `json:"stock" validate:"omitnil,gte=0"`
	Active   *bool            `json:"active"`
}

// ProductService is the catalog store. Single product reads go through the
// product cache, stock mutations always go to the repository.
type ProductService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	cache    cache.Cache
	cacheTTL time.Duration

	genMu sync.Mutex
	gens  map[int64]uint64 // bumped on every invalidation of a product
}

// NewProductService creates a new instance of ProductService.
func NewProductService(products repository.ProductRepository, orders repository.OrderRepository, tx repository.TxManager, c cache.Cache, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		products: products,
		orders:   orders,
		tx:       tx,
		cache:    c,
		cacheTTL: cacheTTL,
		gens:     make(map[int64]uint64),
	}
}

func (s *ProductService) generation(id int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[id]
}

func checkPrice(price decimal.Decimal, category entity.Category) error {
	if price.LessThan(entity.MinProductPrice) {
		return apperror.Validation("Validation failed", "price must be greater than 0")
	}
	if !price.Equal(price.Round(2)) {
		return apperror.Validation("Validation failed", "price must have up to 2 decimal places")
	}
	if category == entity.CategoryFood && price.GreaterThan(entity.FoodPriceCeiling) {
		return apperror.Validation("Food product price cannot exceed 1,000,000",
			"price: "+price.String())
	}
	return nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*entity.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := checkPrice(in.Price, in.Category); err != nil {
		return nil, err
	}

	var created *entity.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.products.ExistsActiveName(ctx, in.Name, 0)
		if err != nil {
			return internalErr(err, "Error checking product name")
		}
		if exists {
			return apperror.Duplicate("Product", "name", in.Name)
		}

		p := &entity.Product{
			Name:      in.Name,
			Category:  in.Category,
			Price:     in.Price,
			Stock:     in.Stock,
			Lifecycle: entity.LifecycleActive,
		}
		if err := s.products.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Duplicate("Product", "name", in.Name)
			}
			return internalErr(err, "Error creating product")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Msgf("Created product %d", created.ID)
	return created, nil
}

// GetActiveProduct returns an active product, reading through the cache.
func (s *ProductService) GetActiveProduct(ctx context.Context, id int64) (*entity.Product, error) {
	key := cache.ProductKey(id)

	var cached entity.Product
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn().Err(err).Msgf("Error getting product %d from cache", id)
	}
	if found && cached.Active() {
		return &cached, nil
	}

	gen := s.generation(id)
	p, err := s.products.GetActiveByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Product", id)
	}

	if err := s.cache.Set(ctx, key, p, s.cacheTTL); err != nil {
		logger.Warn().Err(err).Msgf("Error setting product %d in cache", id)
	}
	// An invalidation that ran after the read may have been overwritten by the
	// Set above. Invalidations from other replicas are only bounded by cacheTTL.
	if s.generation(id) != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Msgf("Error deleting stale product %d from cache", id)
		}
	}
	return p, nil
}

// lookup finds a product in any lifecycle, bypassing the cache.
func (s *ProductService) lookup(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Product", id)
	}
	return p, nil
}

func (s *ProductService) hasPaidOrders(ctx context.Context, productID int64) (bool, error) {
	n, err := s.orders.CountItemsByProductAndStatus(ctx, productID, entity.OrderStatusPaid)
	if err != nil {
		return false, internalErr(err, "Error counting paid orders")
	}
	return n > 0, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id int64, in UpdateProductInput) (*entity.Product, error) {
	trimPtr(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *entity.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.lookup(ctx, id)
		if err != nil {
			return err
		}

		next := *p
		if in.Name != nil {
			next.Name = *in.Name
		}
		if in.Category != nil {
			next.Category = *in.Category
		}
		if in.Price != nil {
			next.Price = *in.Price
		}
		if in.Stock != nil {
			next.Stock = *in.Stock
		}
		if in.Active != nil {
			next.Lifecycle = entity.LifecycleDeleted
			if *in.Active {
				next.Lifecycle = entity.LifecycleActive
			}
		}

		if err := checkPrice(next.Price, next.Category); err != nil {
			return err
		}

		if !next.Price.Equal(p.Price) {
			paid, err := s.hasPaidOrders(ctx, id)
			if err != nil {
				return err
			}
			if paid {
				return apperror.BusinessRule("Cannot change price of a product that has paid orders",
					"productId: "+strconv.FormatInt(id, 10))
			}
		}

		if p.Active() && !next.Active() {
			if err := s.checkDeactivation(ctx, &next); err != nil {
				return err
			}
		}

		if next.Active() && (!p.Active() || !strings.EqualFold(next.Name, p.Name)) {
			exists, err := s.products.ExistsActiveName(ctx, next.Name, id)
			if err != nil {
				return internalErr(err, "Error checking product name")
			}
			if exists {
				return apperror.Duplicate("Product", "name", next.Name)
			}
		}

		if err := s.products.Update(ctx, &next); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Duplicate("Product", "name", next.Name)
			}
			return internalErr(err, "Error updating product")
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache(ctx, id)
	return updated, nil
}

func (s *ProductService) checkDeactivation(ctx context.Context, p *entity.Product) error {
	if p.Stock > 0 {
		return apperror.Validation("Cannot deactivate a product that still has stock",
			"stock: "+strconv.FormatInt(p.Stock, 10))
	}
	paid, err := s.hasPaidOrders(ctx, p.ID)
	if err != nil {
		return err
	}
	if paid {
		return apperror.BusinessRule("Cannot deactivate a product that has paid orders")
	}
	return nil
}

// DeleteProduct deactivates the product. It requires zero stock and no paid orders.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetActiveByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "Product", id)
		}
		if err := s.checkDeactivation(ctx, p); err != nil {
			return err
		}
		p.Lifecycle = entity.LifecycleDeleted
		if err := s.products.Update(ctx, p); err != nil {
			return internalErr(err, "Error deleting product")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Msgf("Deactivated product %d", id)
	s.InvalidateCache(ctx, id)
	return nil
}

func (s *ProductService) ListProducts(ctx context.Context, f repository.ProductFilter, p repository.PageRequest) (repository.Page[entity.Product], error) {
	if f.Category != "" && !f.Category.Valid() {
		return repository.Page[entity.Product]{}, apperror.Validation("Invalid category", "category: "+string(f.Category))
	}
	f.Keyword = strings.TrimSpace(f.Keyword)
	page, err := s.products.List(ctx, f, p)
	if err != nil {
		return page, internalErr(err, "Error listing products")
	}
	return page, nil
}

// ReserveStock decrements the stock of an active product by quantity. It is
// meant to run inside the caller's transaction, which holds the row lock.
func (s *ProductService) ReserveStock(ctx context.Context, productID int64, quantity int64) (*entity.Product, error) {
	if quantity < 1 {
		return nil, apperror.Validation("Validation failed", "quantity must be at least 1")
	}

	var reserved *entity.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetActiveByID(ctx, productID)
		if err != nil {
			return notFoundOr(err, "Product", productID)
		}
		if quantity > p.Stock {
			logger.Warn().Msgf("Product %d out of stock", productID)
			return apperror.InsufficientStock(p.Name, p.Stock, quantity)
		}

		reserved, err = s.products.AdjustStock(ctx, productID, -quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return apperror.InsufficientStock(p.Name, p.Stock, quantity)
		}
		if err != nil {
			return internalErr(err, "Error reserving stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// ReleaseStock returns quantity units to the product. It is not bounded by any
// ceiling and works on deactivated products too.
func (s *ProductService) ReleaseStock(ctx context.Context, productID int64, quantity int64) error {
	if quantity < 1 {
		return apperror.Validation("Validation failed", "quantity must be at least 1")
	}
	_, err := s.products.AdjustStock(ctx, productID, quantity)
	if err != nil {
		return notFoundOr(err, "Product", productID)
	}
	return nil
}

// InvalidateCache drops cached products. Failures are logged only, entries
// also expire on their own.
func (s *ProductService) InvalidateCache(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	s.genMu.Lock()
	for i, id := range ids {
		s.gens[id]++
		keys[i] = cache.ProductKey(id)
	}
	s.genMu.Unlock()
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Error().Err(err).Msgf("Error deleting products %v from cache", ids)
	}
}
