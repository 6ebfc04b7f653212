package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("Product", 7)))

	wrapped := fmt.Errorf("create order: %w", InsufficientStock("Laptop", 2, 5))
	assert.Equal(t, KindInsufficientStock, KindOf(wrapped))
}

func TestInvalidStateDetails(t *testing.T) {
	err := InvalidState("PAID", "pay")
	assert.Equal(t, KindInvalidState, err.Kind)
	assert.Equal(t, []string{"Order status is PAID, only CREATED orders can be paid"}, err.Details)

	err = InvalidState("CANCELLED", "cancel")
	assert.Equal(t, []string{"Order status is CANCELLED, only CREATED orders can be cancelled"}, err.Details)
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)
	assert.Equal(t, "An unexpected error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestInsufficientStockDetails(t *testing.T) {
	err := InsufficientStock("Laptop", 3, 10)
	assert.Equal(t, "Insufficient stock for product: Laptop", err.Message)
	assert.Equal(t, []string{"Available: 3, Requested: 10"}, err.Details)
}
