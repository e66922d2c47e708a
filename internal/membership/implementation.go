package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"firstclub/internal/plan"
	"firstclub/internal/tier"
	"firstclub/internal/user"
	"firstclub/pkg/retry"
)

// RetryConfig bounds the optimistic-conflict retry loop shared by every
// tier-mutating operation.
type RetryConfig struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetry is three attempts with a 100ms linear backoff base.
func DefaultRetry() RetryConfig {
	return RetryConfig{Attempts: 3, Interval: 100 * time.Millisecond}
}

// service implements the Service interface.
type service struct {
	memberships Store
	users       user.Store
	plans       plan.Store
	tiers       tier.Store
	evaluator   *tier.Evaluator
	retryCfg    RetryConfig
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewService creates a new membership service instance.
func NewService(memberships Store, users user.Store, plans plan.Store, tiers tier.Store, evaluator *tier.Evaluator, retryCfg RetryConfig, log *zap.Logger) Service {
	return &service{
		memberships: memberships,
		users:       users,
		plans:       plans,
		tiers:       tiers,
		evaluator:   evaluator,
		retryCfg:    retryCfg,
		limiter:     rate.NewLimiter(rate.Every(time.Minute), 30),
		log:         log,
	}
}

func (s *service) Subscribe(ctx context.Context, userID, planID uuid.UUID) (*Details, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	exists, err := s.memberships.ExistsActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check existing membership: %w", err)
	}
	if exists {
		return nil, ErrAlreadySubscribed
	}

	p, err := s.plans.FindActiveByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	// New subscriptions always start on the lowest tier.
	t, err := s.tiers.FindTierByLevel(ctx, tier.Lowest())
	if err != nil {
		if errors.Is(err, tier.ErrNotFound) {
			return nil, fmt.Errorf("%w: tier %s is not configured", ErrMisconfigured, tier.Lowest())
		}
		return nil, err
	}

	now := time.Now()
	m := &Membership{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     planID,
		TierLevel:  t.Level,
		Status:     StatusActive,
		StartDate:  now,
		ExpiryDate: now.AddDate(0, p.Duration.Months(), 0),
	}

	if err := s.memberships.Create(ctx, m); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.log.Info("user subscribed",
		zap.Stringer("user_id", userID),
		zap.String("plan", p.Name),
		zap.Stringer("tier", t.Level),
	)
	return s.assemble(m, u, p, t), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Details, error) {
	m, err := s.memberships.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.assembleByLookup(ctx, m)
}

func (s *service) UpgradeTier(ctx context.Context, userID uuid.UUID, level tier.Level) (*Details, error) {
	return s.mutateTier(ctx, userID, func(m *Membership) error {
		if !m.CanUpgradeTo(level) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidUpgrade, m.TierLevel, level)
		}
		m.TierLevel = level
		return nil
	})
}

func (s *service) DowngradeTier(ctx context.Context, userID uuid.UUID, level tier.Level) (*Details, error) {
	return s.mutateTier(ctx, userID, func(m *Membership) error {
		if !m.CanDowngradeTo(level) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidDowngrade, m.TierLevel, level)
		}
		m.TierLevel = level
		return nil
	})
}

// mutateTier is the shared optimistic read-modify-write cycle: load the
// record with its version, validate and apply the mutation in memory, then
// attempt the conditional save. Version conflicts restart the cycle from the
// load, bounded by the retry config.
func (s *service) mutateTier(ctx context.Context, userID uuid.UUID, mutate func(*Membership) error) (*Details, error) {
	var saved *Membership
	err := retry.Do(ctx, s.retryCfg.Attempts, s.retryCfg.Interval, s.isConflict, func(ctx context.Context) error {
		m, err := s.memberships.FindByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !m.IsActive() {
			return ErrNotActive
		}
		if err := mutate(m); err != nil {
			return err
		}
		if _, err := s.resolveTier(ctx, m.TierLevel); err != nil {
			return err
		}
		if err := s.memberships.Save(ctx, m); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				s.log.Warn("optimistic lock conflict, retrying",
					zap.Stringer("user_id", userID))
			}
			return err
		}
		saved = m
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.log.Error("tier mutation failed after retries", zap.Stringer("user_id", userID))
			return nil, fmt.Errorf("%w (user %s)", ErrConcurrentModification, userID)
		}
		return nil, err
	}

	s.log.Info("tier changed",
		zap.Stringer("user_id", userID),
		zap.Stringer("tier", saved.TierLevel),
	)
	return s.assembleByLookup(ctx, saved)
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*Details, error) {
	m, err := s.memberships.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.Status = StatusCancelled
	if err := s.memberships.Save(ctx, m); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("%w (user %s)", ErrConcurrentModification, userID)
		}
		return nil, err
	}

	s.log.Info("membership cancelled", zap.Stringer("user_id", userID))
	return s.assembleByLookup(ctx, m)
}

func (s *service) EvaluateTier(ctx context.Context, userID uuid.UUID) (tier.Level, bool, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	var (
		newLevel tier.Level
		upgraded bool
	)
	err = retry.Do(ctx, s.retryCfg.Attempts, s.retryCfg.Interval, s.isConflict, func(ctx context.Context) error {
		newLevel, upgraded = 0, false

		m, err := s.memberships.FindByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		// The evaluation runs against the freshly read tier so a concurrent
		// upgrade cannot make it act on a stale floor.
		eligible, found, err := s.evaluator.HighestEligible(ctx, u, m.TierLevel)
		if err != nil {
			return err
		}
		if !found || !eligible.IsHigherThan(m.TierLevel) {
			return nil
		}

		if _, err := s.resolveTier(ctx, eligible); err != nil {
			return err
		}

		s.log.Info("auto-upgrading tier",
			zap.Stringer("user_id", userID),
			zap.Stringer("from", m.TierLevel),
			zap.Stringer("to", eligible),
		)
		m.TierLevel = eligible
		if err := s.memberships.Save(ctx, m); err != nil {
			return err
		}
		newLevel, upgraded = eligible, true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.log.Error("tier evaluation failed after retries", zap.Stringer("user_id", userID))
			return 0, false, fmt.Errorf("%w (user %s)", ErrConcurrentModification, userID)
		}
		return 0, false, err
	}
	return newLevel, upgraded, nil
}

func (s *service) EligibleTier(ctx context.Context, userID uuid.UUID) (tier.Level, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	current := tier.Lowest()
	if m, err := s.memberships.FindByUserID(ctx, userID); err == nil {
		current = m.TierLevel
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	// Eligibility is computed against the base tier, not the user's current
	// one, so the result can sit at or below what they already hold.
	eligible, found, err := s.evaluator.HighestEligible(ctx, u, tier.Lowest())
	if err != nil {
		return 0, err
	}
	if !found {
		return current, nil
	}
	return eligible, nil
}

func (s *service) isConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// resolveTier maps a missing configured tier to a configuration error: the
// level was referenced by id, so its absence is a deployment bug, not bad
// input.
func (s *service) resolveTier(ctx context.Context, level tier.Level) (*tier.Tier, error) {
	t, err := s.tiers.FindTierByLevel(ctx, level)
	if err != nil {
		if errors.Is(err, tier.ErrNotFound) {
			return nil, fmt.Errorf("%w: tier %s is not configured", ErrMisconfigured, level)
		}
		return nil, err
	}
	return t, nil
}

func (s *service) assembleByLookup(ctx context.Context, m *Membership) (*Details, error) {
	u, err := s.users.FindByID(ctx, m.UserID)
	if err != nil {
		return nil, err
	}
	p, err := s.plans.FindActiveByID(ctx, m.PlanID)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			return nil, fmt.Errorf("%w: plan %s is not configured", ErrMisconfigured, m.PlanID)
		}
		return nil, err
	}
	t, err := s.resolveTier(ctx, m.TierLevel)
	if err != nil {
		return nil, err
	}
	return s.assemble(m, u, p, t), nil
}

func (s *service) assemble(m *Membership, u *user.User, p *plan.Plan, t *tier.Tier) *Details {
	return &Details{
		MembershipID: m.ID,
		UserID:       u.ID,
		UserName:     u.Name,
		UserEmail:    u.Email,
		PlanName:     p.Name,
		PlanDuration: string(p.Duration),
		TierLevel:    t.Level.String(),
		TierName:     t.Name,
		Status:       m.Status,
		StartDate:    m.StartDate,
		ExpiryDate:   m.ExpiryDate,
		Active:       m.IsActive(),
		Benefits:     t.Benefits,
	}
}
