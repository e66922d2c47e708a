package tier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PostgresStore implements Store against the membership_tiers,
// tier_benefits and tier_upgrade_criteria tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListActiveCriteria(ctx context.Context) ([]UpgradeCriteria, error) {
	query := `
		SELECT id, target_level, min_order_count, min_monthly_value, COALESCE(eligible_cohorts, ''), active, description
		FROM tier_upgrade_criteria
		WHERE active = TRUE
		ORDER BY target_level ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()

	var out []UpgradeCriteria
	for rows.Next() {
		var (
			c        UpgradeCriteria
			count    sql.NullInt64
			minValue sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TargetLevel, &count, &minValue, &c.EligibleCohorts, &c.Active, &c.Description); err != nil {
			return nil, fmt.Errorf("scan criteria: %w", err)
		}
		if count.Valid {
			c.MinOrderCount = &count.Int64
		}
		if minValue.Valid {
			v, err := decimal.NewFromString(minValue.String)
			if err != nil {
				return nil, fmt.Errorf("parse criteria value: %w", err)
			}
			c.MinMonthlyValue = &v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate criteria: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindTierByLevel(ctx context.Context, level Level) (*Tier, error) {
	query := `
		SELECT id, level, name, description
		FROM membership_tiers
		WHERE level = $1
	`
	t := &Tier{}
	err := s.db.QueryRowContext(ctx, query, level).Scan(&t.ID, &t.Level, &t.Name, &t.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query tier: %w", err)
	}

	if t.Benefits, err = s.benefitsForTier(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTiers(ctx context.Context) ([]Tier, error) {
	query := `
		SELECT id, level, name, description
		FROM membership_tiers
		ORDER BY level ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tiers: %w", err)
	}
	defer rows.Close()

	var tiers []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.Level, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}

	for i := range tiers {
		if tiers[i].Benefits, err = s.benefitsForTier(ctx, &tiers[i]); err != nil {
			return nil, err
		}
	}
	return tiers, nil
}

func (s *PostgresStore) benefitsForTier(ctx context.Context, t *Tier) ([]Benefit, error) {
	query := `
		SELECT benefit_type, benefit_value, description, COALESCE(applicable_category, '')
		FROM tier_benefits
		WHERE tier_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, t.ID)
	if err != nil {
		return nil, fmt.Errorf("query benefits: %w", err)
	}
	defer rows.Close()

	var benefits []Benefit
	for rows.Next() {
		var b Benefit
		if err := rows.Scan(&b.Type, &b.Value, &b.Description, &b.ApplicableCategory); err != nil {
			return nil, fmt.Errorf("scan benefit: %w", err)
		}
		benefits = append(benefits, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benefits: %w", err)
	}
	return benefits, nil
}
