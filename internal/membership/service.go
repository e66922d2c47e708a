package membership

import (
	"context"

	"github.com/google/uuid"

	"firstclub/internal/tier"
)

// Service defines the interface for the membership service.
type Service interface {
	// Subscribe creates a membership on the plan's lowest tier. Fails when
	// the user already holds an active membership.
	Subscribe(ctx context.Context, userID, planID uuid.UUID) (*Details, error)
	// Get returns the user's current membership with resolved tier and plan.
	Get(ctx context.Context, userID uuid.UUID) (*Details, error)
	// UpgradeTier moves an active membership to a strictly higher tier.
	UpgradeTier(ctx context.Context, userID uuid.UUID, level tier.Level) (*Details, error)
	// DowngradeTier moves an active membership to a strictly lower tier.
	DowngradeTier(ctx context.Context, userID uuid.UUID, level tier.Level) (*Details, error)
	// Cancel marks the membership cancelled. Terminal for tier mutation.
	Cancel(ctx context.Context, userID uuid.UUID) (*Details, error)
	// EvaluateTier runs the upgrade criteria against the membership's
	// current tier and persists the highest strictly-higher tier the user
	// qualifies for. The bool reports whether an upgrade happened.
	EvaluateTier(ctx context.Context, userID uuid.UUID) (tier.Level, bool, error)
	// EligibleTier reports the highest tier the user's history qualifies
	// for, computed against the base tier rather than the user's current
	// one, falling back to the current tier when nothing matches.
	EligibleTier(ctx context.Context, userID uuid.UUID) (tier.Level, error)
}

// Store persists memberships with optimistic-version reads and conditional
// writes.
type Store interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Membership, error)
	// FindByUserIDForUpdate reads the record together with the version used
	// to key the subsequent conditional Save.
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Membership, error)
	Create(ctx context.Context, m *Membership) error
	// Save persists the record iff the stored version still equals
	// m.Version, returning ErrVersionConflict otherwise. On success the
	// version counter advances on the record.
	Save(ctx context.Context, m *Membership) error
	ExistsActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error)
}
