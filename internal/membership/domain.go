// Package membership manages the subscription relationship between a user
// and their benefit tier, including the optimistic-concurrency-controlled
// tier mutation path.
package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"firstclub/internal/tier"
)

// Store-level sentinels.
var (
	// ErrNotFound is returned when a user has no membership record.
	ErrNotFound = errors.New("membership not found")
	// ErrVersionConflict is returned by a conditional write when the stored
	// version advanced after the record was read.
	ErrVersionConflict = errors.New("membership version conflict")
	// ErrAlreadyExists is returned when a second membership row is created
	// for a user that already has one.
	ErrAlreadyExists = errors.New("membership already exists for user")
)

// Service-level errors.
var (
	// ErrAlreadySubscribed rejects a subscribe call for a user holding an
	// active membership.
	ErrAlreadySubscribed = errors.New("user already has an active membership")
	// ErrNotActive rejects tier mutations on cancelled or expired
	// memberships.
	ErrNotActive = errors.New("membership is not active")
	// ErrInvalidUpgrade rejects an upgrade to a tier not strictly higher
	// than the current one.
	ErrInvalidUpgrade = errors.New("target tier is not higher than current tier")
	// ErrInvalidDowngrade rejects a downgrade to a tier not strictly lower
	// than the current one.
	ErrInvalidDowngrade = errors.New("target tier is not lower than current tier")
	// ErrConcurrentModification is terminal: the retry budget was exhausted
	// by repeated version conflicts. Callers should not retry through this.
	ErrConcurrentModification = errors.New("concurrent modification: retries exhausted")
	// ErrMisconfigured flags a referenced tier or plan that is absent from
	// configuration. Never expected in correct operation.
	ErrMisconfigured = errors.New("configuration inconsistency")
	// ErrRateLimited rejects subscribe calls above the configured rate.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Status is the membership lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Membership links one user to their current tier and plan. Version is a
// monotonically incrementing counter used for optimistic concurrency
// control; every successful save advances it by one.
type Membership struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	PlanID     uuid.UUID  `json:"plan_id"`
	TierLevel  tier.Level `json:"tier_level"`
	Status     Status     `json:"status"`
	StartDate  time.Time  `json:"start_date"`
	ExpiryDate time.Time  `json:"expiry_date"`
	Version    int64      `json:"version"`
}

// IsActive reports whether the membership confers benefits right now.
func (m *Membership) IsActive() bool {
	return m.Status == StatusActive && time.Now().Before(m.ExpiryDate)
}

func (m *Membership) CanUpgradeTo(level tier.Level) bool {
	return level.IsHigherThan(m.TierLevel)
}

func (m *Membership) CanDowngradeTo(level tier.Level) bool {
	return level.IsLowerThan(m.TierLevel)
}

// Details is the assembled view of a membership returned to callers.
type Details struct {
	MembershipID uuid.UUID      `json:"membership_id"`
	UserID       uuid.UUID      `json:"user_id"`
	UserName     string         `json:"user_name"`
	UserEmail    string         `json:"user_email"`
	PlanName     string         `json:"plan_name"`
	PlanDuration string         `json:"plan_duration"`
	TierLevel    string         `json:"tier_level"`
	TierName     string         `json:"tier_name"`
	Status       Status         `json:"status"`
	StartDate    time.Time      `json:"start_date"`
	ExpiryDate   time.Time      `json:"expiry_date"`
	Active       bool           `json:"is_active"`
	Benefits     []tier.Benefit `json:"benefits"`
}
