// Package plan holds the billing plan catalog. Plans are externally
// configured and read-only for this service.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("plan not found or inactive")

// Duration is a plan billing period.
type Duration string

const (
	Monthly   Duration = "monthly"
	Quarterly Duration = "quarterly"
	Yearly    Duration = "yearly"
)

// Months returns the membership extension granted by one billing period.
func (d Duration) Months() int {
	switch d {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	default:
		return 0
	}
}

func ParseDuration(s string) (Duration, error) {
	switch Duration(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	default:
		return "", fmt.Errorf("unknown plan duration %q", s)
	}
}

// Plan is one subscribable billing plan.
type Plan struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Duration    Duration        `json:"duration"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Active      bool            `json:"active"`
}

// Store provides read access to active plans.
type Store interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListActive(ctx context.Context) ([]Plan, error)
}
