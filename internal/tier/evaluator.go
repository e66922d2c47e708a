package tier

import (
	"context"

	"go.uber.org/zap"

	"firstclub/internal/user"
)

// Store provides read access to tiers and upgrade criteria.
type Store interface {
	ListActiveCriteria(ctx context.Context) ([]UpgradeCriteria, error)
	FindTierByLevel(ctx context.Context, level Level) (*Tier, error)
	ListTiers(ctx context.Context) ([]Tier, error)
}

// Evaluator computes the highest tier a user currently qualifies for. It has
// no side effects and is safe to call without holding any lock.
type Evaluator struct {
	store      Store
	strategies []Strategy
	log        *zap.Logger
}

func NewEvaluator(store Store, strategies []Strategy, log *zap.Logger) *Evaluator {
	return &Evaluator{store: store, strategies: strategies, log: log}
}

// HighestEligible returns the highest level strictly above floor whose active
// criteria record the user fully satisfies. The second return is false when
// no record passes.
func (e *Evaluator) HighestEligible(ctx context.Context, u *user.User, floor Level) (Level, bool, error) {
	criteria, err := e.store.ListActiveCriteria(ctx)
	if err != nil {
		return 0, false, err
	}

	var (
		best  Level
		found bool
	)
	for i := range criteria {
		c := &criteria[i]
		if !c.TargetLevel.IsHigherThan(floor) {
			continue
		}

		ok, err := e.meetsAll(ctx, u, c)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}

		if !found || c.TargetLevel.IsHigherThan(best) {
			best = c.TargetLevel
			found = true
		}
	}
	return best, found, nil
}

// meetsAll applies every strategy to one criteria record; all must pass.
func (e *Evaluator) meetsAll(ctx context.Context, u *user.User, c *UpgradeCriteria) (bool, error) {
	for _, s := range e.strategies {
		ok, err := s.Evaluate(ctx, u, c)
		if err != nil {
			return false, err
		}
		if !ok {
			e.log.Debug("criteria strategy failed",
				zap.Stringer("user_id", u.ID),
				zap.String("strategy", s.Name()),
				zap.Stringer("target_tier", c.TargetLevel),
			)
			return false, nil
		}
	}
	return true, nil
}
