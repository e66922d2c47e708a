package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for the order service.
type Service interface {
	// CreateOrder records a purchase, applying the benefits of the user's
	// active membership tier.
	CreateOrder(ctx context.Context, userID uuid.UUID, value decimal.Decimal, category string) (*Order, error)
	// FreeDeliveryEligible reports whether the user's tier grants free
	// delivery for the category.
	FreeDeliveryEligible(ctx context.Context, userID uuid.UUID, category string) (bool, error)
	// ApplicableDiscount returns the highest discount percentage the user's
	// tier grants for the category; zero without an active membership.
	ApplicableDiscount(ctx context.Context, userID uuid.UUID, category string) (decimal.Decimal, error)
}
