package tier

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCriteriaStore serves a fixed criteria list.
type fakeCriteriaStore struct {
	criteria []UpgradeCriteria
}

func (f *fakeCriteriaStore) ListActiveCriteria(context.Context) ([]UpgradeCriteria, error) {
	return f.criteria, nil
}

func (f *fakeCriteriaStore) FindTierByLevel(context.Context, Level) (*Tier, error) {
	return nil, ErrNotFound
}

func (f *fakeCriteriaStore) ListTiers(context.Context) ([]Tier, error) { return nil, nil }

func newTestEvaluator(criteria []UpgradeCriteria, stats *fakeStats) *Evaluator {
	store := &fakeCriteriaStore{criteria: criteria}
	return NewEvaluator(store, DefaultStrategies(stats, zap.NewNop()), zap.NewNop())
}

func TestHighestEligiblePicksHighestPassingTarget(t *testing.T) {
	criteria := []UpgradeCriteria{
		{TargetLevel: Gold, MinOrderCount: intPtr(5), MinMonthlyValue: decPtr("200.00"), Active: true},
		{TargetLevel: Platinum, MinOrderCount: intPtr(10), MinMonthlyValue: decPtr("500.00"), EligibleCohorts: "premium,vip", Active: true},
	}
	stats := &fakeStats{count: 10, sum: decimal.RequireFromString("520.00")}

	e := newTestEvaluator(criteria, stats)

	lvl, ok, err := e.HighestEligible(context.Background(), testUser("vip"), Silver)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Platinum, lvl)
}

func TestHighestEligibleRespectsFloor(t *testing.T) {
	criteria := []UpgradeCriteria{
		{TargetLevel: Gold, Active: true},
		{TargetLevel: Platinum, EligibleCohorts: "vip", Active: true},
	}
	e := newTestEvaluator(criteria, &fakeStats{})

	// Gold floor: the Gold record is not strictly higher, and the user is
	// outside the Platinum cohort.
	_, ok, err := e.HighestEligible(context.Background(), testUser("regular"), Gold)
	require.NoError(t, err)
	assert.False(t, ok)

	// Silver floor admits the unconstrained Gold record.
	lvl, ok, err := e.HighestEligible(context.Background(), testUser("regular"), Silver)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Gold, lvl)
}

func TestHighestEligibleNoneQualify(t *testing.T) {
	criteria := []UpgradeCriteria{
		{TargetLevel: Gold, MinOrderCount: intPtr(5), Active: true},
		{TargetLevel: Platinum, MinOrderCount: intPtr(10), Active: true},
	}
	e := newTestEvaluator(criteria, &fakeStats{count: 2})

	_, ok, err := e.HighestEligible(context.Background(), testUser(""), Silver)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHighestEligibleAllStrategiesMustPass(t *testing.T) {
	criteria := []UpgradeCriteria{
		{TargetLevel: Platinum, MinOrderCount: intPtr(10), MinMonthlyValue: decPtr("500.00"), EligibleCohorts: "premium,vip", Active: true},
	}
	// Counts and value pass, cohort does not.
	e := newTestEvaluator(criteria, &fakeStats{count: 12, sum: decimal.RequireFromString("600.00")})

	_, ok, err := e.HighestEligible(context.Background(), testUser("regular"), Silver)
	require.NoError(t, err)
	assert.False(t, ok)
}
