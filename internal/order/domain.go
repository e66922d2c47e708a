// Package order records purchases and applies tier-derived benefits
// (discounts, free delivery) at order time. Its monthly aggregates feed the
// tier upgrade criteria.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("order not found")

// Order is one purchase with any benefits that were applied to it.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Value           decimal.Decimal `json:"order_value"`
	Category        string          `json:"category,omitempty"`
	FreeDelivery    bool            `json:"free_delivery_applied"`
	DiscountPercent decimal.Decimal `json:"discount_percentage"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PlacedAt        time.Time       `json:"placed_at"`
}

// FinalAmount is the order value after the applied discount.
func (o *Order) FinalAmount() decimal.Decimal {
	return o.Value.Sub(o.DiscountAmount)
}

// Store persists orders and serves the per-user aggregates consumed by tier
// evaluation.
type Store interface {
	Create(ctx context.Context, o *Order) error
	CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	// SumValueForUserSince returns zero when the user placed no orders.
	SumValueForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error)
}
