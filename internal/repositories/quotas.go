package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yapchat/backend/internal/db"
	"github.com/yapchat/backend/internal/models"
)

// PostgresQuotaRepository persists per-user daily yap quota windows.
type PostgresQuotaRepository struct {
	pool db.Pool
}

// NewPostgresQuotaRepository constructs a quota repository backed by PostgreSQL.
func NewPostgresQuotaRepository(pool db.Pool) *PostgresQuotaRepository {
	return &PostgresQuotaRepository{pool: pool}
}

// Get loads the user's quota window. A user with no recorded window yields a
// zero-valued window rather than ErrNotFound.
func (r *PostgresQuotaRepository) Get(ctx context.Context, userID string) (models.QuotaWindow, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.QuotaWindow{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_id, count, reset_at
        FROM yap_quotas
        WHERE user_id = $1
    `, userID)

	var (
		window  models.QuotaWindow
		resetAt sql.NullTime
	)
	if err := row.Scan(&window.UserID, &window.Count, &resetAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QuotaWindow{UserID: userID}, nil
		}
		return models.QuotaWindow{}, fmt.Errorf("select quota window: %w", err)
	}

	if resetAt.Valid {
		window.ResetAt = resetAt.Time
	}

	return window, nil
}

// Reset opens a fresh window for the user with a zero count and the provided
// boundary.
func (r *PostgresQuotaRepository) Reset(ctx context.Context, userID string, resetAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO yap_quotas (user_id, count, reset_at)
        VALUES ($1, 0, $2)
        ON CONFLICT (user_id)
        DO UPDATE SET count = 0, reset_at = EXCLUDED.reset_at
    `, userID, resetAt)
	if err != nil {
		return fmt.Errorf("reset quota window: %w", err)
	}

	return nil
}

// Increment charges one unit against the user's window. The increment happens
// inside the database so concurrent yap-starts by the same user cannot lose
// updates.
func (r *PostgresQuotaRepository) Increment(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO yap_quotas (user_id, count)
        VALUES ($1, 1)
        ON CONFLICT (user_id)
        DO UPDATE SET count = yap_quotas.count + 1
    `, userID)
	if err != nil {
		return fmt.Errorf("increment quota window: %w", err)
	}

	return nil
}
