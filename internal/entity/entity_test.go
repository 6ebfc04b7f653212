package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTierRank(t *testing.T) {
	assert.Less(t, TierRegular.Rank(), TierGold.Rank())
	assert.Less(t, TierGold.Rank(), TierPlatinum.Rank())
	assert.False(t, Tier("DIAMOND").Valid())
}

func TestTierForSpend(t *testing.T) {
	assert.Equal(t, TierRegular, TierForSpend(decimal.RequireFromString("9999999.99")))
	assert.Equal(t, TierGold, TierForSpend(decimal.NewFromInt(10_000_000)))
	assert.Equal(t, TierGold, TierForSpend(decimal.RequireFromString("49999999.99")))
	assert.Equal(t, TierPlatinum, TierForSpend(decimal.NewFromInt(50_000_000)))
}

func TestCustomerAccrue_UpgradesThroughTiers(t *testing.T) {
	c := &Customer{Tier: TierRegular, TotalSpent: decimal.Zero}

	c.Accrue(decimal.NewFromInt(15_000_000))
	assert.Equal(t, TierGold, c.Tier)

	c.Accrue(decimal.NewFromInt(40_000_000))
	assert.Equal(t, TierPlatinum, c.Tier)
	assert.True(t, decimal.NewFromInt(55_000_000).Equal(c.TotalSpent))
}

func TestCustomerAccrue_NeverDowngrades(t *testing.T) {
	c := &Customer{Tier: TierPlatinum, TotalSpent: decimal.Zero}

	c.Accrue(decimal.NewFromInt(1_000))
	assert.Equal(t, TierPlatinum, c.Tier)

	c.Accrue(decimal.Zero)
	assert.Equal(t, TierPlatinum, c.Tier)
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusCreated.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusCreated.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusCreated.CanTransitionTo(OrderStatusCreated))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusPaid))
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("FOOD")
	assert.True(t, ok)
	assert.Equal(t, CategoryFood, c)

	_, ok = ParseCategory("food")
	assert.False(t, ok)
}

func TestOrderItemSubtotal(t *testing.T) {
	i := OrderItem{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3}
	assert.True(t, decimal.RequireFromString("59.97").Equal(i.Subtotal()))
}
