package membership

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"firstclub/internal/plan"
	"firstclub/internal/tier"
	"firstclub/internal/user"
)

// fakeStore is an in-memory Store with real version semantics. conflicts
// makes the next n Save calls fail with ErrVersionConflict regardless of the
// version, simulating a concurrent writer.
type fakeStore struct {
	mu        sync.Mutex
	byUser    map[uuid.UUID]*Membership
	conflicts int
	saveCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byUser: map[uuid.UUID]*Membership{}}
}

func (f *fakeStore) FindByUserID(_ context.Context, userID uuid.UUID) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Membership, error) {
	return f.FindByUserID(ctx, userID)
}

func (f *fakeStore) Create(_ context.Context, m *Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byUser[m.UserID]; ok {
		return ErrAlreadyExists
	}
	m.Version = 1
	cp := *m
	f.byUser[m.UserID] = &cp
	return nil
}

func (f *fakeStore) Save(_ context.Context, m *Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return ErrVersionConflict
	}
	stored, ok := f.byUser[m.UserID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != m.Version {
		return ErrVersionConflict
	}
	m.Version++
	cp := *m
	f.byUser[m.UserID] = &cp
	return nil
}

func (f *fakeStore) ExistsActiveForUser(_ context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byUser[userID]
	return ok && m.Status == StatusActive, nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*user.User
}

func (f *fakeUserStore) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type fakePlanStore struct {
	plans map[uuid.UUID]*plan.Plan
}

func (f *fakePlanStore) FindActiveByID(_ context.Context, id uuid.UUID) (*plan.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, plan.ErrNotFound
	}
	return p, nil
}

func (f *fakePlanStore) ListActive(context.Context) ([]plan.Plan, error) { return nil, nil }

// fakeTierStore holds the three standard tiers plus a criteria list.
type fakeTierStore struct {
	criteria []tier.UpgradeCriteria
}

func (f *fakeTierStore) ListActiveCriteria(context.Context) ([]tier.UpgradeCriteria, error) {
	return f.criteria, nil
}

func (f *fakeTierStore) FindTierByLevel(_ context.Context, level tier.Level) (*tier.Tier, error) {
	if !level.Valid() {
		return nil, tier.ErrNotFound
	}
	return &tier.Tier{ID: uuid.New(), Level: level, Name: level.String() + " Member"}, nil
}

func (f *fakeTierStore) ListTiers(context.Context) ([]tier.Tier, error) { return nil, nil }

// stubStats serves fixed order counts and totals to the strategies.
type stubStats struct {
	count int64
	sum   decimal.Decimal
}

func (s *stubStats) CountForUserSince(context.Context, uuid.UUID, time.Time) (int64, error) {
	return s.count, nil
}

func (s *stubStats) SumValueForUserSince(context.Context, uuid.UUID, time.Time) (decimal.Decimal, error) {
	return s.sum, nil
}

type fixture struct {
	svc    Service
	store  *fakeStore
	users  *fakeUserStore
	userID uuid.UUID
	planID uuid.UUID
}

func newFixture(t *testing.T, cohort string, stats *stubStats, criteria []tier.UpgradeCriteria) *fixture {
	t.Helper()

	userID := uuid.New()
	planID := uuid.New()

	users := &fakeUserStore{users: map[uuid.UUID]*user.User{
		userID: {ID: userID, Email: "test@example.com", Name: "Test User", Cohort: cohort},
	}}
	plans := &fakePlanStore{plans: map[uuid.UUID]*plan.Plan{
		planID: {ID: planID, Name: "Monthly Plan", Duration: plan.Monthly, Price: decimal.RequireFromString("9.99"), Active: true},
	}}
	tiers := &fakeTierStore{criteria: criteria}
	store := newFakeStore()

	if stats == nil {
		stats = &stubStats{}
	}
	evaluator := tier.NewEvaluator(tiers, tier.DefaultStrategies(stats, zap.NewNop()), zap.NewNop())
	svc := NewService(store, users, plans, tiers, evaluator,
		RetryConfig{Attempts: 3, Interval: time.Millisecond}, zap.NewNop())

	return &fixture{svc: svc, store: store, users: users, userID: userID, planID: planID}
}

func (fx *fixture) subscribe(t *testing.T) *Details {
	t.Helper()
	d, err := fx.svc.Subscribe(context.Background(), fx.userID, fx.planID)
	require.NoError(t, err)
	return d
}

func TestSubscribeStartsOnLowestTier(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)

	before := time.Now()
	d := fx.subscribe(t)

	assert.Equal(t, fx.userID, d.UserID)
	assert.Equal(t, tier.Silver.String(), d.TierLevel)
	assert.Equal(t, StatusActive, d.Status)
	assert.True(t, d.Active)

	// Monthly plan: expiry one calendar month out.
	want := before.AddDate(0, 1, 0)
	assert.WithinDuration(t, want, d.ExpiryDate, 2*time.Second)
}

func TestSubscribeRejectsDuplicate(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	_, err := fx.svc.Subscribe(context.Background(), fx.userID, fx.planID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscribeUnknownUser(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)

	_, err := fx.svc.Subscribe(context.Background(), uuid.New(), fx.planID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestSubscribeUnknownPlan(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)

	_, err := fx.svc.Subscribe(context.Background(), fx.userID, uuid.New())
	assert.ErrorIs(t, err, plan.ErrNotFound)
}

func TestUpgradeTier(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	d, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Gold)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold.String(), d.TierLevel)

	stored, err := fx.store.FindByUserID(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold, stored.TierLevel)
	assert.Equal(t, int64(2), stored.Version)
}

func TestUpgradeTierRejectsNonHigherTarget(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	for _, target := range []tier.Level{tier.Silver} {
		_, err := fx.svc.UpgradeTier(context.Background(), fx.userID, target)
		assert.ErrorIs(t, err, ErrInvalidUpgrade)
	}

	// The record is untouched.
	stored, err := fx.store.FindByUserID(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Silver, stored.TierLevel)
	assert.Equal(t, int64(1), stored.Version)
}

func TestDowngradeTier(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	_, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Platinum)
	require.NoError(t, err)

	d, err := fx.svc.DowngradeTier(context.Background(), fx.userID, tier.Gold)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold.String(), d.TierLevel)

	_, err = fx.svc.DowngradeTier(context.Background(), fx.userID, tier.Platinum)
	assert.ErrorIs(t, err, ErrInvalidDowngrade)
}

func TestTierMutationRequiresActiveMembership(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	_, err := fx.svc.Cancel(context.Background(), fx.userID)
	require.NoError(t, err)

	_, err = fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Gold)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestCancel(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	d, err := fx.svc.Cancel(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, d.Status)
	assert.False(t, d.Active)
}

func TestUpgradeRetriesThroughTransientConflict(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	fx.store.conflicts = 1
	d, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Gold)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold.String(), d.TierLevel)
	assert.Equal(t, 2, fx.store.saveCalls)
}

func TestUpgradeGivesUpAfterPersistentConflict(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)
	fx.subscribe(t)

	fx.store.conflicts = 100
	_, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Gold)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 3, fx.store.saveCalls)
}

func defaultCriteria() []tier.UpgradeCriteria {
	five, ten := int64(5), int64(10)
	twoHundred := decimal.RequireFromString("200.00")
	fiveHundred := decimal.RequireFromString("500.00")
	return []tier.UpgradeCriteria{
		{TargetLevel: tier.Gold, MinOrderCount: &five, MinMonthlyValue: &twoHundred, Active: true},
		{TargetLevel: tier.Platinum, MinOrderCount: &ten, MinMonthlyValue: &fiveHundred, EligibleCohorts: "premium,vip", Active: true},
	}
}

func TestEvaluateTierUpgradesQualifyingUser(t *testing.T) {
	stats := &stubStats{count: 10, sum: decimal.RequireFromString("520.00")}
	fx := newFixture(t, "vip", stats, defaultCriteria())
	fx.subscribe(t)

	level, upgraded, err := fx.svc.EvaluateTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.Equal(t, tier.Platinum, level)

	stored, err := fx.store.FindByUserID(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Platinum, stored.TierLevel)
}

func TestEvaluateTierCohortExcluded(t *testing.T) {
	// Numbers clear both bars but the cohort only admits Gold.
	stats := &stubStats{count: 10, sum: decimal.RequireFromString("520.00")}
	fx := newFixture(t, "regular", stats, defaultCriteria())
	fx.subscribe(t)

	level, upgraded, err := fx.svc.EvaluateTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.Equal(t, tier.Gold, level)
}

func TestEvaluateTierNoChangeWhenUnqualified(t *testing.T) {
	stats := &stubStats{count: 1, sum: decimal.RequireFromString("10.00")}
	fx := newFixture(t, "regular", stats, defaultCriteria())
	fx.subscribe(t)

	_, upgraded, err := fx.svc.EvaluateTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.False(t, upgraded)

	stored, err := fx.store.FindByUserID(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Silver, stored.TierLevel)
	assert.Equal(t, int64(1), stored.Version)
}

func TestEvaluateTierNeverDowngrades(t *testing.T) {
	stats := &stubStats{count: 6, sum: decimal.RequireFromString("250.00")}
	fx := newFixture(t, "vip", stats, defaultCriteria())
	fx.subscribe(t)

	_, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Platinum)
	require.NoError(t, err)

	// The history only supports Gold, which is below the current tier.
	_, upgraded, err := fx.svc.EvaluateTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.False(t, upgraded)

	stored, err := fx.store.FindByUserID(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Platinum, stored.TierLevel)
}

func TestEvaluateTierRetriesConflicts(t *testing.T) {
	stats := &stubStats{count: 10, sum: decimal.RequireFromString("520.00")}
	fx := newFixture(t, "vip", stats, defaultCriteria())
	fx.subscribe(t)

	fx.store.conflicts = 2
	level, upgraded, err := fx.svc.EvaluateTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.Equal(t, tier.Platinum, level)
	assert.Equal(t, 3, fx.store.saveCalls)
}

func TestEligibleTierComputedFromBase(t *testing.T) {
	// Qualifies for Gold only, but already holds Platinum. The eligible tier
	// reports what the history supports, not the held tier.
	stats := &stubStats{count: 6, sum: decimal.RequireFromString("250.00")}
	fx := newFixture(t, "vip", stats, defaultCriteria())
	fx.subscribe(t)

	_, err := fx.svc.UpgradeTier(context.Background(), fx.userID, tier.Platinum)
	require.NoError(t, err)

	level, err := fx.svc.EligibleTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold, level)
}

func TestEligibleTierFallsBackToCurrent(t *testing.T) {
	stats := &stubStats{count: 0, sum: decimal.Zero}
	fx := newFixture(t, "regular", stats, defaultCriteria())
	fx.subscribe(t)

	level, err := fx.svc.EligibleTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Silver, level)
}

func TestEligibleTierWithoutMembership(t *testing.T) {
	stats := &stubStats{count: 6, sum: decimal.RequireFromString("250.00")}
	fx := newFixture(t, "regular", stats, defaultCriteria())

	level, err := fx.svc.EligibleTier(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, tier.Gold, level)
}

func TestSubscribeRateLimit(t *testing.T) {
	fx := newFixture(t, "regular", nil, nil)

	// The limiter admits a burst of 30; drain it with distinct users.
	for i := 0; i < 30; i++ {
		id := uuid.New()
		fx.users.users[id] = &user.User{ID: id, Email: fmt.Sprintf("u%d@example.com", i), Name: "U"}
		_, err := fx.svc.Subscribe(context.Background(), id, fx.planID)
		require.NoError(t, err)
	}

	_, err := fx.svc.Subscribe(context.Background(), fx.userID, fx.planID)
	assert.ErrorIs(t, err, ErrRateLimited)
}
