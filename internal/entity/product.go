package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronics Category = "ELECTRONICS"
	CategoryFashion     Category = "FASHION"
	CategoryFood        Category = "FOOD"
)

var (
	MinProductPrice  = decimal.New(1, -2)
	FoodPriceCeiling = decimal.NewFromInt(1_000_000)
)

func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryFashion, CategoryFood:
		return true
	}
	return false
}

func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  Category        `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	Lifecycle Lifecycle       `json:"lifecycle"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *Product) Active() bool {
	return p.Lifecycle == LifecycleActive
}

/*
MySQL schema for the products table lives in migrations.AutoMigrate:
  price DECIMAL(19,2), stock BIGINT with CHECK (stock >= 0), lifecycle VARCHAR(16).
*/
