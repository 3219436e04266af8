package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yapchat/backend/internal/db"
	"github.com/yapchat/backend/internal/models"
)

// PostgresMessageRepository provides PostgreSQL-backed persistence for yap messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create stores a new message.
func (r *PostgresMessageRepository) Create(ctx context.Context, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO messages (id, yap_id, sender_id, kind, body, media_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, message.ID, message.YapID, message.SenderID, message.Kind, nullable(message.Text), nullable(message.MediaURL), message.CreatedAt)
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
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// ListByYap returns the yap's messages in creation order. The id tiebreak
// keeps same-timestamp inserts in a stable order.
func (r *PostgresMessageRepository) ListByYap(ctx context.Context, yapID string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, yap_id, sender_id, kind, COALESCE(body, ''), COALESCE(media_url, ''), created_at
        FROM messages
        WHERE yap_id = $1
        ORDER BY created_at, id
    `, yapID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(&message.ID, &message.YapID, &message.SenderID, &message.Kind, &message.Text, &message.MediaURL, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
