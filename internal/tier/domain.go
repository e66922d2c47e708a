// Package tier holds the membership tier model and the rule engine that
// decides which tier a user qualifies for.
package tier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("tier not found")

// Level is an ordered membership level. Higher values confer more benefits.
type Level int

const (
	Silver   Level = 1
	Gold     Level = 2
	Platinum Level = 3
)

// Lowest is the level assigned to new subscriptions.
func Lowest() Level { return Silver }

// Levels returns all levels in ascending order.
func Levels() []Level { return []Level{Silver, Gold, Platinum} }

func (l Level) Valid() bool { return l >= Silver && l <= Platinum }

func (l Level) IsHigherThan(other Level) bool { return l > other }

func (l Level) IsLowerThan(other Level) bool { return l < other }

func (l Level) String() string {
	switch l {
	case Silver:
		return "SILVER"
	case Gold:
		return "GOLD"
	case Platinum:
		return "PLATINUM"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts an API-facing name like "GOLD" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SILVER":
		return Silver, nil
	case "GOLD":
		return Gold, nil
	case "PLATINUM":
		return Platinum, nil
	default:
		return 0, fmt.Errorf("unknown tier level %q", s)
	}
}

// Well-known benefit types.
const (
	BenefitDiscount        = "DISCOUNT"
	BenefitFreeDelivery    = "FREE_DELIVERY"
	BenefitPrioritySupport = "PRIORITY_SUPPORT"
	BenefitEarlyAccess     = "EARLY_ACCESS"
)

// Benefit is a named effect attached to a tier, optionally scoped to one
// product category.
type Benefit struct {
	Type               string `json:"benefit_type"`
	Value              string `json:"benefit_value"`
	Description        string `json:"description"`
	ApplicableCategory string `json:"applicable_category,omitempty"`
}

// AppliesTo reports whether the benefit covers the given order category. A
// benefit with no category restriction covers everything; a category-less
// order only matches unrestricted benefits.
func (b Benefit) AppliesTo(category string) bool {
	if strings.TrimSpace(b.ApplicableCategory) == "" {
		return true
	}
	if strings.TrimSpace(category) == "" {
		return false
	}
	return strings.EqualFold(b.ApplicableCategory, category)
}

// Tier is one membership level with its benefit set. Exactly one tier exists
// per level.
type Tier struct {
	ID          uuid.UUID `json:"id"`
	Level       Level     `json:"level"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Benefits    []Benefit `json:"benefits"`
}

// UpgradeCriteria is the externally configured rule set for promotion into
// TargetLevel. Unset dimensions impose no constraint. EligibleCohorts is a
// comma-separated list; empty means any cohort qualifies.
type UpgradeCriteria struct {
	ID              uuid.UUID
	TargetLevel     Level
	MinOrderCount   *int64
	MinMonthlyValue *decimal.Decimal
	EligibleCohorts string
	Active          bool
	Description     string
}
