package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const uniqueViolation = "23505"

// PostgresStore implements Store with a version-keyed conditional UPDATE:
// the write succeeds only when the stored version still matches the one read
// at load time, which is how concurrent writers are detected across
// processes.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("firstclub/membership"),
	}
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*Membership, error) {
	return s.findByUserID(ctx, userID)
}

// FindByUserIDForUpdate reads the record for a later conditional write. The
// version column read here is the lock token; no row lock is taken.
func (s *PostgresStore) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Membership, error) {
	return s.findByUserID(ctx, userID)
}

func (s *PostgresStore) findByUserID(ctx context.Context, userID uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, user_id, plan_id, tier_level, status, start_date, expiry_date, version
		FROM memberships
		WHERE user_id = $1
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&m.ID,
		&m.UserID,
		&m.PlanID,
		&m.TierLevel,
		&m.Status,
		&m.StartDate,
		&m.ExpiryDate,
		&m.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query membership: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Create(ctx context.Context, m *Membership) error {
	ctx, span := s.tracer.Start(ctx, "membership.create",
		trace.WithAttributes(
			attribute.String("user.id", m.UserID.String()),
			attribute.String("tier", m.TierLevel.String()),
		),
	)
	defer span.End()

	query := `
		INSERT INTO memberships (id, user_id, plan_id, tier_level, status, start_date, expiry_date, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.UserID, m.PlanID, m.TierLevel, m.Status, m.StartDate, m.ExpiryDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	m.Version = 1
	return nil
}

// Save performs the conditional write: the UPDATE is keyed on the version
// read at load time and advances it by one. Zero affected rows means another
// writer committed first.
func (s *PostgresStore) Save(ctx context.Context, m *Membership) error {
	ctx, span := s.tracer.Start(ctx, "membership.save",
		trace.WithAttributes(
			attribute.String("user.id", m.UserID.String()),
			attribute.Int64("expected.version", m.Version),
		),
	)
	defer span.End()

	query := `
		UPDATE memberships
		SET plan_id = $2, tier_level = $3, status = $4, start_date = $5, expiry_date = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $7
	`
	res, err := s.db.ExecContext(ctx, query, m.ID, m.PlanID, m.TierLevel, m.Status, m.StartDate, m.ExpiryDate, m.Version)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return ErrVersionConflict
	}

	m.Version++
	span.SetAttributes(attribute.Int64("new.version", m.Version))
	return nil
}

func (s *PostgresStore) ExistsActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM memberships WHERE user_id = $1 AND status = $2
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, StatusActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("query membership existence: %w", err)
	}
	return exists, nil
}
