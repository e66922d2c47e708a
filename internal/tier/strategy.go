package tier

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"firstclub/internal/user"
)

// OrderStats supplies per-user order aggregates for criteria evaluation.
type OrderStats interface {
	CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	SumValueForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// Strategy evaluates one dimension of an upgrade criteria record. A dimension
// that is unset on the record is vacuously satisfied.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, u *user.User, c *UpgradeCriteria) (bool, error)
}

// DefaultStrategies returns the fixed strategy set applied to every criteria
// record.
func DefaultStrategies(stats OrderStats, log *zap.Logger) []Strategy {
	return []Strategy{
		&OrderCountStrategy{stats: stats, log: log},
		&OrderValueStrategy{stats: stats, log: log},
		&CohortStrategy{log: log},
	}
}

// startOfMonth is the evaluation window opening: day 1 of the current
// calendar month, midnight, local wall clock.
func startOfMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

// OrderCountStrategy passes when the user placed at least MinOrderCount
// orders since the start of the current month.
type OrderCountStrategy struct {
	stats OrderStats
	log   *zap.Logger
}

func (s *OrderCountStrategy) Name() string { return "ORDER_COUNT" }

func (s *OrderCountStrategy) Evaluate(ctx context.Context, u *user.User, c *UpgradeCriteria) (bool, error) {
	if c.MinOrderCount == nil {
		return true, nil
	}

	count, err := s.stats.CountForUserSince(ctx, u.ID, startOfMonth(time.Now()))
	if err != nil {
		return false, err
	}

	s.log.Debug("evaluated order count",
		zap.Stringer("user_id", u.ID),
		zap.Int64("orders", count),
		zap.Int64("required", *c.MinOrderCount),
	)
	return count >= *c.MinOrderCount, nil
}

// OrderValueStrategy passes when the user's order value since the start of
// the current month reaches MinMonthlyValue.
type OrderValueStrategy struct {
	stats OrderStats
	log   *zap.Logger
}

func (s *OrderValueStrategy) Name() string { return "ORDER_VALUE" }

func (s *OrderValueStrategy) Evaluate(ctx context.Context, u *user.User, c *UpgradeCriteria) (bool, error) {
	if c.MinMonthlyValue == nil {
		return true, nil
	}

	total, err := s.stats.SumValueForUserSince(ctx, u.ID, startOfMonth(time.Now()))
	if err != nil {
		return false, err
	}

	s.log.Debug("evaluated order value",
		zap.Stringer("user_id", u.ID),
		zap.String("total", total.String()),
		zap.String("required", c.MinMonthlyValue.String()),
	)
	return total.GreaterThanOrEqual(*c.MinMonthlyValue), nil
}

// CohortStrategy passes when the criteria record names no cohorts, or when
// the user's cohort matches one of them case-insensitively. A user without a
// cohort fails any cohort-restricted record.
type CohortStrategy struct {
	log *zap.Logger
}

func (s *CohortStrategy) Name() string { return "COHORT" }

func (s *CohortStrategy) Evaluate(_ context.Context, u *user.User, c *UpgradeCriteria) (bool, error) {
	if strings.TrimSpace(c.EligibleCohorts) == "" {
		return true, nil
	}
	if strings.TrimSpace(u.Cohort) == "" {
		return false, nil
	}

	for _, cohort := range strings.Split(c.EligibleCohorts, ",") {
		if strings.EqualFold(strings.TrimSpace(cohort), strings.TrimSpace(u.Cohort)) {
			return true, nil
		}
	}
	return false, nil
}
