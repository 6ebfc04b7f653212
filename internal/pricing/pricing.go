// Package pricing computes order totals and loyalty discounts. It holds no state
// and performs no I/O.
package pricing

import (
	"retail-order-service/internal/entity"

	"github.com/shopspring/decimal"
)

var (
	// BonusThreshold is the order total a cart must strictly exceed to earn the bonus rate.
	BonusThreshold = decimal.NewFromInt(5_000_000)
	BonusRate      = decimal.New(5, -2)
	MaxRate        = decimal.New(30, -2)

	hundred = decimal.NewFromInt(100)
)

// Quote is the priced result of a cart.
type Quote struct {
	Total    decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
	Rate     decimal.Decimal
}

// PriceOrder prices items for a customer of the given tier.
func PriceOrder(items []entity.OrderItem, tier entity.Tier) Quote {
	// Step 1: sum the line subtotals
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	// Step 2: resolve the effective rate
	rate := Rate(total, tier)

	// Step 3: round the discount half-up to cents
	discount := total.Mul(rate).Round(2)

	return Quote{
		Total:    total,
		Discount: discount,
		Final:    total.Sub(discount),
		Rate:     rate,
	}
}

// Rate returns the discount fraction for an order total placed by a customer of tier.
func Rate(total decimal.Decimal, tier entity.Tier) decimal.Decimal {
	rate := tier.DiscountRate()
	if total.GreaterThan(BonusThreshold) {
		rate = rate.Add(BonusRate)
	}
	return capRate(rate)
}

func capRate(rate decimal.Decimal) decimal.Decimal {
	return decimal.Min(rate, MaxRate)
}

// DiscountPercentage expresses discount as a percentage of total with two decimals.
// A zero total yields zero.
func DiscountPercentage(discount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return discount.DivRound(total, 4).Mul(hundred).Round(2)
}
