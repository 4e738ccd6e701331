package domain

import (
	"math"
	"strings"
	"time"
)

const (
	MaxQuantity   = 999999
	MaxPriceCents = 99999999
)

type Item struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name" validate:"required,min=2,max=100"`
	PriceCents int64     `db:"price_cents" validate:"gt=0,lte=99999999"`
	Quantity   int       `db:"quantity" validate:"gte=0,lte=999999"`
	Version    int       `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Normalize trims the name; blank names then fail the required rule.
func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
}

func (i Item) Validate() error {
	return validateStruct(i)
}

// WithQuantity returns a copy carrying quantity q after bound checks.
func (i Item) WithQuantity(q int) (Item, error) {
	if q < 0 {
		return Item{}, ErrInsufficientStock
	}
	if q > MaxQuantity {
		return Item{}, ErrQuantityLimit
	}
	i.Quantity = q
	return i, nil
}

// CentsFromPrice converts a decimal price to cents, rounding half away from zero.
func CentsFromPrice(price float64) int64 {
	return int64(math.Round(price * 100))
}

func PriceFromCents(cents int64) float64 {
	return float64(cents) / 100
}
