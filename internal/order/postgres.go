package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store against the orders table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, user_id, order_value, category, free_delivery_applied, discount_percentage, discount_amount, placed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.UserID, o.Value, o.Category, o.FreeDelivery, o.DiscountPercent, o.DiscountAmount, o.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE user_id = $1 AND placed_at >= $2
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SumValueForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(order_value), 0)
		FROM orders
		WHERE user_id = $1 AND placed_at >= $2
	`
	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, userID, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum order value: %w", err)
	}
	return sum, nil
}
