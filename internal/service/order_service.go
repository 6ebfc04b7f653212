package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/cache"
	"retail-order-service/internal/entity"
	"retail-order-service/internal/events"
	"retail-order-service/internal/pricing"
	"retail-order-service/internal/repository"
)

type CreateOrderInput struct {
	CustomerID int64              `json:"customer_id" validate:"required,gt=0"`
	Items      []entity.OrderLine `json:"items" validate:"required,min=1,dive"`
}

// OrderDetails is an order together with the customer and products it refers
// to, as needed by the order view.
type OrderDetails struct {
	Order    entity.Order
	Customer entity.Customer
	Products map[int64]entity.Product
}

// OrderService owns the order state machine: CREATED -> PAID and
// CREATED -> CANCELLED. Every transition runs in a single transaction.
type OrderService struct {
	orders         repository.OrderRepository
	customers      *CustomerService
	products       *ProductService
	tx             repository.TxManager
	publisher      events.Publisher
	cache          cache.Cache
	idempotencyTTL time.Duration
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders repository.OrderRepository, customers *CustomerService, products *ProductService, tx repository.TxManager, publisher events.Publisher, c cache.Cache, idempotencyTTL time.Duration) *OrderService {
	return &OrderService{
		orders:         orders,
		customers:      customers,
		products:       products,
		tx:             tx,
		publisher:      publisher,
		cache:          c,
		idempotencyTTL: idempotencyTTL,
	}
}

// CreateOrder reserves stock for every line, snapshots unit prices, prices the
// cart with the customer's current tier and stores the order as CREATED. A
// failure on any line leaves no reservation behind. A non-empty idempotencyKey
// may be used once per TTL.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput, idempotencyKey string) (*OrderDetails, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		claimed, err := s.cache.Claim(ctx, cache.IdempotencyKey(idempotencyKey), s.idempotencyTTL)
		if err != nil {
			return nil, internalErr(err, "Error validating idempotency key")
		}
		if !claimed {
			return nil, apperror.Duplicate("Order", "idempotency key", idempotencyKey)
		}
	}

	var details *OrderDetails
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetActiveCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}

		items := make([]entity.OrderItem, len(in.Items))
		products := make(map[int64]entity.Product, len(in.Items))
		for _, i := range reservationOrder(in.Items) {
			line := in.Items[i]
			p, err := s.products.ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			items[i] = entity.OrderItem{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				UnitPrice: p.Price,
			}
			products[p.ID] = *p
		}

		quote := pricing.PriceOrder(items, customer.Tier)
		order := &entity.Order{
			CustomerID:     customer.ID,
			Items:          items,
			TotalAmount:    quote.Total,
			DiscountAmount: quote.Discount,
			FinalAmount:    quote.Final,
			Status:         entity.OrderStatusCreated,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return internalErr(err, "Error creating order")
		}

		details = &OrderDetails{Order: *order, Customer: *customer, Products: products}
		return nil
	})
	if err != nil {
		if idempotencyKey != "" {
			// let the client retry with the same key
			if delErr := s.cache.Delete(ctx, cache.IdempotencyKey(idempotencyKey)); delErr != nil {
				logger.Error().Err(delErr).Msgf("Error releasing idempotency key %s", idempotencyKey)
			}
		}
		return nil, err
	}

	logger.Info().Msgf("Created order %d for customer %d, final amount %s", details.Order.ID, details.Customer.ID, details.Order.FinalAmount)
	s.products.InvalidateCache(ctx, productIDs(details.Order.Items)...)
	s.publishOrderEvent(ctx, events.TypeCreated, details.Order)
	return details, nil
}

// reservationOrder returns line indexes sorted by product id so concurrent
// orders lock product rows in the same order.
func reservationOrder(lines []entity.OrderLine) []int {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lines[idx[a]].ProductID < lines[idx[b]].ProductID
	})
	return idx
}

// PayOrder moves a CREATED order to PAID and accrues its final amount to the
// customer's spend, which may upgrade the tier.
func (s *OrderService) PayOrder(ctx context.Context, id int64) (*OrderDetails, error) {
	var details *OrderDetails
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.transition(ctx, id, entity.OrderStatusPaid, "pay")
		if err != nil {
			return err
		}

		customer, err := s.customers.AccrueSpend(ctx, order.CustomerID, order.FinalAmount)
		if err != nil {
			return err
		}

		products, err := s.productsFor(ctx, order.Items)
		if err != nil {
			return err
		}
		details = &OrderDetails{Order: *order, Customer: *customer, Products: products}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Msgf("Paid order %d", id)
	s.publishOrderEvent(ctx, events.TypePaid, details.Order)
	return details, nil
}

// CancelOrder moves a CREATED order to CANCELLED and releases the reserved
// stock. Customer spend is left untouched.
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*OrderDetails, error) {
	var order *entity.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.transition(ctx, id, entity.OrderStatusCancelled, "cancel")
		if err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.products.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Msgf("Cancelled order %d", id)
	s.products.InvalidateCache(ctx, productIDs(order.Items)...)
	s.publishOrderEvent(ctx, events.TypeCancelled, *order)

	// projected outside the transaction, the customer row must not be locked after product rows
	return s.detailsFor(ctx, order)
}

// transition loads the order and moves it to next. It must run inside a transaction.
func (s *OrderService) transition(ctx context.Context, id int64, next entity.OrderStatus, action string) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Order", id)
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, apperror.InvalidState(string(order.Status), action)
	}

	err = s.orders.UpdateStatus(ctx, id, order.Status, next)
	if errors.Is(err, repository.ErrStatusConflict) {
		current, getErr := s.orders.GetByID(ctx, id)
		if getErr != nil {
			return nil, notFoundOr(getErr, "Order", id)
		}
		return nil, apperror.InvalidState(string(current.Status), action)
	}
	if err != nil {
		return nil, notFoundOr(err, "Order", id)
	}

	order.Status = next
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*OrderDetails, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Order", id)
	}
	return s.detailsFor(ctx, order)
}

// ListOrders returns orders newest first, optionally filtered by customer and status.
func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter, p repository.PageRequest) (repository.Page[OrderDetails], error) {
	out := repository.Page[OrderDetails]{}
	if f.Status != "" && !f.Status.Valid() {
		return out, apperror.Validation("Invalid order status", "status: "+string(f.Status))
	}
	if f.CustomerID != 0 {
		if _, err := s.customers.lookup(ctx, f.CustomerID); err != nil {
			return out, err
		}
	}

	page, err := s.orders.List(ctx, f, p)
	if err != nil {
		return out, internalErr(err, "Error listing orders")
	}

	out = repository.Page[OrderDetails]{Page: page.Page, Size: page.Size, Total: page.Total, Items: make([]OrderDetails, 0, len(page.Items))}
	customers := make(map[int64]entity.Customer)
	products := make(map[int64]entity.Product)
	for _, order := range page.Items {
		c, ok := customers[order.CustomerID]
		if !ok {
			found, err := s.customers.lookup(ctx, order.CustomerID)
			if err != nil {
				return out, err
			}
			c = *found
			customers[c.ID] = c
		}

		refs := make(map[int64]entity.Product, len(order.Items))
		for _, item := range order.Items {
			pr, ok := products[item.ProductID]
			if !ok {
				found, err := s.products.lookup(ctx, item.ProductID)
				if err != nil {
					return out, err
				}
				pr = *found
				products[pr.ID] = pr
			}
			refs[pr.ID] = pr
		}
		out.Items = append(out.Items, OrderDetails{Order: order, Customer: c, Products: refs})
	}
	return out, nil
}

func (s *OrderService) detailsFor(ctx context.Context, order *entity.Order) (*OrderDetails, error) {
	customer, err := s.customers.lookup(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	products, err := s.productsFor(ctx, order.Items)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{Order: *order, Customer: *customer, Products: products}, nil
}

func (s *OrderService) productsFor(ctx context.Context, items []entity.OrderItem) (map[int64]entity.Product, error) {
	out := make(map[int64]entity.Product, len(items))
	for _, item := range items {
		if _, ok := out[item.ProductID]; ok {
			continue
		}
		p, err := s.products.lookup(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		out[p.ID] = *p
	}
	return out, nil
}

// publishOrderEvent runs after commit. A failed publish is logged and does not
// affect the committed order.
func (s *OrderService) publishOrderEvent(ctx context.Context, t events.Type, order entity.Order) {
	event := events.NewOrderEvent(t, order)
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for order %d", t, order.ID)
	}
}

func productIDs(items []entity.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
