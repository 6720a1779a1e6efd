package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	// Discount is taken off each unit.
	Discount  decimal.Decimal
	Active    bool
	ImageURL  string
	CreatedAt time.Time
}
