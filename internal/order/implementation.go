package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"firstclub/internal/membership"
	"firstclub/internal/tier"
	"firstclub/internal/user"
)

var oneHundred = decimal.NewFromInt(100)

// service implements the Service interface.
type service struct {
	orders      Store
	users       user.Store
	memberships membership.Store
	tiers       tier.Store
	log         *zap.Logger
}

// NewService creates a new order service instance.
func NewService(orders Store, users user.Store, memberships membership.Store, tiers tier.Store, log *zap.Logger) Service {
	return &service{
		orders:      orders,
		users:       users,
		memberships: memberships,
		tiers:       tiers,
		log:         log,
	}
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, value decimal.Decimal, category string) (*Order, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	o := &Order{
		ID:              uuid.New(),
		UserID:          userID,
		Value:           value,
		Category:        category,
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		PlacedAt:        time.Now(),
	}

	benefits, err := s.activeBenefits(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.applyBenefits(o, benefits)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created",
		zap.Stringer("order_id", o.ID),
		zap.Stringer("user_id", userID),
		zap.String("value", o.Value.String()),
		zap.String("discount", o.DiscountAmount.String()),
		zap.Bool("free_delivery", o.FreeDelivery),
	)
	return o, nil
}

func (s *service) FreeDeliveryEligible(ctx context.Context, userID uuid.UUID, category string) (bool, error) {
	benefits, err := s.activeBenefits(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, b := range benefits {
		if b.Type == tier.BenefitFreeDelivery && strings.EqualFold(b.Value, "true") && b.AppliesTo(category) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) ApplicableDiscount(ctx context.Context, userID uuid.UUID, category string) (decimal.Decimal, error) {
	benefits, err := s.activeBenefits(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	best := decimal.Zero
	for _, b := range benefits {
		if b.Type != tier.BenefitDiscount || !b.AppliesTo(category) {
			continue
		}
		pct, err := decimal.NewFromString(b.Value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("malformed discount benefit %q: %w", b.Value, err)
		}
		if pct.GreaterThan(best) {
			best = pct
		}
	}
	return best, nil
}

// activeBenefits resolves the benefit set of the user's active membership
// tier; users without one get no benefits rather than an error.
func (s *service) activeBenefits(ctx context.Context, userID uuid.UUID) ([]tier.Benefit, error) {
	m, err := s.memberships.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, membership.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !m.IsActive() {
		return nil, nil
	}

	t, err := s.tiers.FindTierByLevel(ctx, m.TierLevel)
	if err != nil {
		return nil, err
	}
	return t.Benefits, nil
}

func (s *service) applyBenefits(o *Order, benefits []tier.Benefit) {
	for _, b := range benefits {
		if b.Type == tier.BenefitFreeDelivery && strings.EqualFold(b.Value, "true") && b.AppliesTo(o.Category) {
			o.FreeDelivery = true
			break
		}
	}

	for _, b := range benefits {
		if b.Type != tier.BenefitDiscount || !b.AppliesTo(o.Category) {
			continue
		}
		pct, err := decimal.NewFromString(b.Value)
		if err != nil {
			s.log.Warn("skipping malformed discount benefit", zap.String("value", b.Value))
			continue
		}
		o.DiscountPercent = pct
		o.DiscountAmount = o.Value.Mul(pct).DivRound(oneHundred, 2)
		break
	}
}
