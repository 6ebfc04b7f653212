package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/entity"
	"retail-order-service/internal/repository"
)

type CreateCustomerInput struct {
	Name  string `json:"name" validate:"required,min=3,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// UpdateCustomerInput changes only the fields that are set.
type UpdateCustomerInput struct {
	Name  *string `json:"name" validate:"omitnil,min=3,max=100"`
	Email *string `json:"email" validate:"omitnil,email"`
}

// CustomerService is the customer ledger. AccrueSpend is the only operation
// that changes spend or tier.
type CustomerService struct {
	customers repository.CustomerRepository
	tx        repository.TxManager
}

// NewCustomerService creates a new instance of CustomerService.
func NewCustomerService(customers repository.CustomerRepository, tx repository.TxManager) *CustomerService {
	return &CustomerService{customers: customers, tx: tx}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*entity.Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *entity.Customer
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.customers.ExistsActiveEmail(ctx, in.Email, 0)
		if err != nil {
			return internalErr(err, "Error checking customer email")
		}
		if exists {
			return apperror.Duplicate("Customer", "email", in.Email)
		}

		c := &entity.Customer{
			Name:       in.Name,
			Email:      in.Email,
			Tier:       entity.TierRegular,
			TotalSpent: decimal.Zero,
			Lifecycle:  entity.LifecycleActive,
		}
		if err := s.customers.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Duplicate("Customer", "email", in.Email)
			}
			return internalErr(err, "Error creating customer")
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Msgf("Created customer %d", created.ID)
	return created, nil
}

// GetActiveCustomer returns the customer only when it has not been deleted.
func (s *CustomerService) GetActiveCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	c, err := s.customers.GetActiveByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Customer", id)
	}
	return c, nil
}

// lookup finds a customer in any lifecycle, for projecting historical orders.
func (s *CustomerService) lookup(ctx context.Context, id int64) (*entity.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Customer", id)
	}
	return c, nil
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, in UpdateCustomerInput) (*entity.Customer, error) {
	trimPtr(in.Name)
	trimPtr(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *entity.Customer
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.GetActiveCustomer(ctx, id)
		if err != nil {
			return err
		}

		if in.Email != nil {
			if !strings.EqualFold(*in.Email, c.Email) {
				exists, err := s.customers.ExistsActiveEmail(ctx, *in.Email, c.ID)
				if err != nil {
					return internalErr(err, "Error checking customer email")
				}
				if exists {
					return apperror.Duplicate("Customer", "email", *in.Email)
				}
			}
			c.Email = *in.Email
		}
		if in.Name != nil {
			c.Name = *in.Name
		}

		if err := s.customers.Update(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Duplicate("Customer", "email", c.Email)
			}
			return internalErr(err, "Error updating customer")
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCustomer soft deletes the customer. Its orders stay readable.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.GetActiveCustomer(ctx, id)
		if err != nil {
			return err
		}
		c.Lifecycle = entity.LifecycleDeleted
		if err := s.customers.Update(ctx, c); err != nil {
			return internalErr(err, "Error deleting customer")
		}
		logger.Info().Msgf("Deleted customer %d", id)
		return nil
	})
}

func (s *CustomerService) ListCustomers(ctx context.Context, f repository.CustomerFilter, p repository.PageRequest) (repository.Page[entity.Customer], error) {
	if f.Tier != "" && !f.Tier.Valid() {
		return repository.Page[entity.Customer]{}, apperror.Validation("Invalid membership level", "tier: "+string(f.Tier))
	}
	f.Keyword = strings.TrimSpace(f.Keyword)
	page, err := s.customers.List(ctx, f, p)
	if err != nil {
		return page, internalErr(err, "Error listing customers")
	}
	return page, nil
}

// AccrueSpend adds amount to the customer's cumulative spend and upgrades the
// tier when a higher threshold is crossed. It joins the caller's transaction.
func (s *CustomerService) AccrueSpend(ctx context.Context, customerID int64, amount decimal.Decimal) (*entity.Customer, error) {
	if amount.IsNegative() {
		return nil, apperror.Validation("Spend amount cannot be negative", "amount: "+amount.String())
	}

	var out *entity.Customer
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.GetByID(ctx, customerID)
		if err != nil {
			return notFoundOr(err, "Customer", customerID)
		}

		before := c.Tier
		c.Accrue(amount)
		if err := s.customers.Update(ctx, c); err != nil {
			return internalErr(err, "Error updating customer spend")
		}
		if c.Tier != before {
			logger.Info().Msgf("Customer %d upgraded from %s to %s", c.ID, before, c.Tier)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
