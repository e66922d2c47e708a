// Package bootstrap creates the schema and seeds the configuration data the
// service needs to run: plans, tiers with their benefits, upgrade criteria
// and a few demo users. Every step is idempotent and runs once at process
// start, outside the request path.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"firstclub/internal/tier"
)

func Ensure(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if err := createSchema(ctx, db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := seedPlans(ctx, db, log); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	if err := seedTiers(ctx, db, log); err != nil {
		return fmt.Errorf("seed tiers: %w", err)
	}
	if err := seedCriteria(ctx, db, log); err != nil {
		return fmt.Errorf("seed criteria: %w", err)
	}
	if err := seedUsers(ctx, db, log); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			cohort TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS membership_plans (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			duration TEXT NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS membership_tiers (
			id UUID PRIMARY KEY,
			level INT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tier_benefits (
			id UUID PRIMARY KEY,
			tier_id UUID NOT NULL REFERENCES membership_tiers(id),
			benefit_type TEXT NOT NULL,
			benefit_value TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			applicable_category TEXT
		);

		CREATE TABLE IF NOT EXISTS tier_upgrade_criteria (
			id UUID PRIMARY KEY,
			target_level INT NOT NULL UNIQUE,
			min_order_count BIGINT,
			min_monthly_value NUMERIC(10,2),
			eligible_cohorts TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS memberships (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL UNIQUE REFERENCES users(id),
			plan_id UUID NOT NULL REFERENCES membership_plans(id),
			tier_level INT NOT NULL,
			status TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			expiry_date TIMESTAMPTZ NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			order_value NUMERIC(10,2) NOT NULL,
			category TEXT,
			free_delivery_applied BOOLEAN NOT NULL DEFAULT FALSE,
			discount_percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
			discount_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
			placed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_orders_user_placed ON orders (user_id, placed_at);
	`)
	return err
}

func seedPlans(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if populated, err := tableHasRows(ctx, db, "membership_plans"); err != nil || populated {
		return err
	}

	plans := []struct {
		name, duration, price, description string
	}{
		{"Monthly Plan", "monthly", "9.99", "Pay monthly, cancel anytime"},
		{"Quarterly Plan", "quarterly", "24.99", "Save 17% with quarterly billing"},
		{"Yearly Plan", "yearly", "89.99", "Best value - Save 25% annually"},
	}
	for _, p := range plans {
		_, err := db.ExecContext(ctx, `
			INSERT INTO membership_plans (id, name, duration, price, description, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (name) DO NOTHING
		`, uuid.New(), p.name, p.duration, p.price, p.description)
		if err != nil {
			return err
		}
	}

	log.Info("seeded membership plans", zap.Int("count", len(plans)))
	return nil
}

func seedTiers(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if populated, err := tableHasRows(ctx, db, "membership_tiers"); err != nil || populated {
		return err
	}

	type benefit struct {
		typ, value, description string
	}
	tiers := []struct {
		level             tier.Level
		name, description string
		benefits          []benefit
	}{
		{
			tier.Silver, "Silver Member", "Entry level membership with basic benefits",
			[]benefit{
				{tier.BenefitDiscount, "5", "5% discount on all items"},
				{tier.BenefitFreeDelivery, "true", "Free delivery on orders above $50"},
			},
		},
		{
			tier.Gold, "Gold Member", "Mid-tier membership with enhanced benefits",
			[]benefit{
				{tier.BenefitDiscount, "10", "10% discount on all items"},
				{tier.BenefitFreeDelivery, "true", "Free delivery on all orders"},
				{tier.BenefitPrioritySupport, "true", "24/7 priority customer support"},
			},
		},
		{
			tier.Platinum, "Platinum Member", "Premium membership with exclusive benefits",
			[]benefit{
				{tier.BenefitDiscount, "15", "15% discount on all items"},
				{tier.BenefitFreeDelivery, "true", "Free express delivery on all orders"},
				{tier.BenefitPrioritySupport, "true", "Dedicated account manager"},
				{tier.BenefitEarlyAccess, "true", "Early access to sales and exclusive deals"},
			},
		},
	}

	for _, t := range tiers {
		tierID := uuid.New()
		_, err := db.ExecContext(ctx, `
			INSERT INTO membership_tiers (id, level, name, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (level) DO NOTHING
		`, tierID, t.level, t.name, t.description)
		if err != nil {
			return err
		}
		for _, b := range t.benefits {
			_, err := db.ExecContext(ctx, `
				INSERT INTO tier_benefits (id, tier_id, benefit_type, benefit_value, description)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.New(), tierID, b.typ, b.value, b.description)
			if err != nil {
				return err
			}
		}
	}

	log.Info("seeded membership tiers", zap.Int("count", len(tiers)))
	return nil
}

func seedCriteria(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if populated, err := tableHasRows(ctx, db, "tier_upgrade_criteria"); err != nil || populated {
		return err
	}

	criteria := []struct {
		target     tier.Level
		minCount   int64
		minValue   string
		cohorts    sql.NullString
		desc       string
	}{
		{tier.Gold, 5, "200.00", sql.NullString{}, "Make 5 orders with total value of $200+ in a month"},
		{tier.Platinum, 10, "500.00", sql.NullString{String: "premium,vip", Valid: true}, "Make 10 orders with total value of $500+ in a month (Premium/VIP cohort)"},
	}
	for _, c := range criteria {
		_, err := db.ExecContext(ctx, `
			INSERT INTO tier_upgrade_criteria (id, target_level, min_order_count, min_monthly_value, eligible_cohorts, active, description)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
			ON CONFLICT (target_level) DO NOTHING
		`, uuid.New(), c.target, c.minCount, c.minValue, c.cohorts, c.desc)
		if err != nil {
			return err
		}
	}

	log.Info("seeded tier upgrade criteria", zap.Int("count", len(criteria)))
	return nil
}

func seedUsers(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if populated, err := tableHasRows(ctx, db, "users"); err != nil || populated {
		return err
	}

	users := []struct {
		email, name, cohort string
	}{
		{"john.doe@example.com", "John Doe", "regular"},
		{"jane.smith@example.com", "Jane Smith", "premium"},
		{"bob.wilson@example.com", "Bob Wilson", "vip"},
	}
	for _, u := range users {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, email, name, cohort)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), u.email, u.name, u.cohort)
		if err != nil {
			return err
		}
	}

	log.Info("seeded demo users", zap.Int("count", len(users)))
	return nil
}

func tableHasRows(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
