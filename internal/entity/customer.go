package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle marks whether a record is visible to the business. Records are never
// removed from storage, they move to LifecycleDeleted instead.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleDeleted Lifecycle = "DELETED"
)

type Tier string

const (
	TierRegular  Tier = "REGULAR"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

var (
	GoldThreshold     = decimal.NewFromInt(10_000_000)
	PlatinumThreshold = decimal.NewFromInt(50_000_000)
)

// Rank orders the tiers. Unknown values rank below REGULAR.
func (t Tier) Rank() int {
	switch t {
	case TierRegular:
		return 0
	case TierGold:
		return 1
	case TierPlatinum:
		return 2
	}
	return -1
}

// DiscountRate returns the base discount fraction granted to the tier.
func (t Tier) DiscountRate() decimal.Decimal {
	switch t {
	case TierGold:
		return decimal.New(10, -2)
	case TierPlatinum:
		return decimal.New(20, -2)
	}
	return decimal.Zero
}

func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	return t, t.Valid()
}

// TierForSpend maps a cumulative spend to the tier it qualifies for.
func TierForSpend(spent decimal.Decimal) Tier {
	switch {
	case spent.GreaterThanOrEqual(PlatinumThreshold):
		return TierPlatinum
	case spent.GreaterThanOrEqual(GoldThreshold):
		return TierGold
	}
	return TierRegular
}

type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Tier       Tier            `json:"tier"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Lifecycle  Lifecycle       `json:"lifecycle"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (c *Customer) Active() bool {
	return c.Lifecycle == LifecycleActive
}

// Accrue adds amount to the cumulative spend and upgrades the tier when the new
// spend qualifies for a strictly higher one. The tier never goes down.
func (c *Customer) Accrue(amount decimal.Decimal) {
	c.TotalSpent = c.TotalSpent.Add(amount)
	if next := TierForSpend(c.TotalSpent); next.Rank() > c.Tier.Rank() {
		c.Tier = next
	}
}
