package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yapchat/backend/internal/db"
	"github.com/yapchat/backend/internal/models"
)

// PostgresYapRepository provides PostgreSQL-backed persistence for yap sessions.
//
// The yaps table carries a partial unique index on (pair_key) WHERE is_active,
// so two concurrent inserts for the same pair cannot both succeed: the loser
// surfaces ErrConflict and re-reads the winner's row.
type PostgresYapRepository struct {
	pool db.Pool
}

// NewPostgresYapRepository constructs a yap repository backed by PostgreSQL.
func NewPostgresYapRepository(pool db.Pool) *PostgresYapRepository {
	return &PostgresYapRepository{pool: pool}
}

// Create stores a new yap session.
func (r *PostgresYapRepository) Create(ctx context.Context, yap models.Yap) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO yaps (id, participant_a, participant_b, pair_key, started_at, is_active)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, yap.ID, yap.ParticipantA, yap.ParticipantB, models.PairKey(yap.ParticipantA, yap.ParticipantB), yap.StartedAt, yap.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert yap: %w", err)
	}

	return nil
}

// FindByID fetches a yap by id.
func (r *PostgresYapRepository) FindByID(ctx context.Context, id string) (models.Yap, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Yap{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, participant_a, participant_b, started_at, ended_at, is_active
        FROM yaps
        WHERE id = $1
    `, id)

	return scanYap(row)
}

// FindActiveByPair fetches the active yap between the two users, if any.
func (r *PostgresYapRepository) FindActiveByPair(ctx context.Context, userA, userB string) (models.Yap, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Yap{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, participant_a, participant_b, started_at, ended_at, is_active
        FROM yaps
        WHERE pair_key = $1 AND is_active
    `, models.PairKey(userA, userB))

	return scanYap(row)
}

// ListActiveForUser returns the active yaps the user participates in.
func (r *PostgresYapRepository) ListActiveForUser(ctx context.Context, userID string) ([]models.Yap, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, participant_a, participant_b, started_at, ended_at, is_active
        FROM yaps
        WHERE is_active AND (participant_a = $1 OR participant_b = $1)
        ORDER BY started_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query active yaps: %w", err)
	}
	defer rows.Close()

	var yaps []models.Yap
	for rows.Next() {
		yap, err := scanYap(rows)
		if err != nil {
			return nil, err
		}
		yaps = append(yaps, yap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yaps: %w", err)
	}

	return yaps, nil
}

func scanYap(row pgx.Row) (models.Yap, error) {
	var (
		yap     models.Yap
		endedAt sql.NullTime
	)

	if err := row.Scan(&yap.ID, &yap.ParticipantA, &yap.ParticipantB, &yap.StartedAt, &endedAt, &yap.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Yap{}, ErrNotFound
		}
		return models.Yap{}, fmt.Errorf("scan yap: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time.UTC()
		yap.EndedAt = &t
	}

	return yap, nil
}
