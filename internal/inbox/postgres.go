package inbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/earshot/pkg/wire"
)

// Schema is the SQL DDL for the inbox_notifications table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment. Delivered
// rows are kept for audit; the partial index keeps Pending cheap anyway.
const Schema = `
CREATE TABLE IF NOT EXISTS inbox_notifications (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL,
    priority     TEXT NOT NULL DEFAULT 'normal',
    speak        BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    delivered_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_inbox_notifications_pending
    ON inbox_notifications(created_at) WHERE delivered_at IS NULL;
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database, for deployments
// where queued notifications must survive a server restart.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// inbox_notifications table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("inbox: migrate: %w", err)
	}
	return nil
}

// Append implements [Store.Append].
func (s *PostgresStore) Append(ctx context.Context, n Notification) (Notification, error) {
	n.ID = uuid.NewString()
	if n.Priority == "" {
		n.Priority = wire.PriorityNormal
	}

	const query = `
		INSERT INTO inbox_notifications (id, title, message, priority, speak)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query, n.ID, n.Title, n.Message, n.Priority, n.Speak).
		Scan(&n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("inbox: append: %w", err)
	}
	return n, nil
}

// Pending implements [Store.Pending].
func (s *PostgresStore) Pending(ctx context.Context) ([]Notification, error) {
	const query = `
		SELECT id, title, message, priority, speak, created_at
		FROM inbox_notifications
		WHERE delivered_at IS NULL
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inbox: pending: %w", err)
	}
	defer rows.Close()

	var pending []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Priority, &n.Speak, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("inbox: pending scan: %w", err)
		}
		pending = append(pending, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: pending: %w", err)
	}
	return pending, nil
}

// MarkDelivered implements [Store.MarkDelivered].
func (s *PostgresStore) MarkDelivered(ctx context.Context, id string) error {
	const query = `
		UPDATE inbox_notifications
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("inbox: mark delivered %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
