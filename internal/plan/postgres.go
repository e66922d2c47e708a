package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore implements Store against the membership_plans table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindActiveByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	query := `
		SELECT id, name, duration, price, description, active
		FROM membership_plans
		WHERE id = $1 AND active = TRUE
	`
	p := &Plan{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Duration, &p.Price, &p.Description, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query plan: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Plan, error) {
	query := `
		SELECT id, name, duration, price, description, active
		FROM membership_plans
		WHERE active = TRUE
		ORDER BY price ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Duration, &p.Price, &p.Description, &p.Active); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}
