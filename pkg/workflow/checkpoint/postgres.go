package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const defaultPostgresTable = "medigraph_checkpoints"

// Querier abstracts the pgx methods PostgresStore needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists checkpoints to PostgreSQL.
// Concurrency is handled by the underlying pool; the store does not own it,
// so Close only stops further use.
type PostgresStore struct {
	db        Querier
	tableName string
	closed    atomic.Bool
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTableName overrides the default table name. The name is sanitized
// because it is interpolated into queries.
func WithTableName(name string) PostgresOption {
	return func(s *PostgresStore) {
		s.tableName = pgx.Identifier{name}.Sanitize()
	}
}

// NewPostgresStore creates a store over db. Call EnsureSchema once before use.
func NewPostgresStore(db Querier, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, tableName: defaultPostgresTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the checkpoint table and index if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		conversation_id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		data BYTEA NOT NULL
	)`, s.tableName)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (updated_at DESC)`,
		pgx.Identifier{"idx_" + unquote(s.tableName) + "_updated_at"}.Sanitize(), s.tableName)
	if _, err := s.db.Exec(ctx, index); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`INSERT INTO %s (conversation_id, sequence, updated_at, data)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (conversation_id) DO UPDATE SET
			sequence = %s.sequence + 1,
			updated_at = EXCLUDED.updated_at,
			data = EXCLUDED.data`, s.tableName, s.tableName)

	if _, err := s.db.Exec(ctx, query, conversationID, time.Now().UTC(), data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT data FROM %s WHERE conversation_id = $1`, s.tableName)

	var data []byte
	err := s.db.QueryRow(ctx, query, conversationID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Info, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT conversation_id, sequence, updated_at, octet_length(data)
		FROM %s ORDER BY updated_at DESC, conversation_id`, s.tableName)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ConversationID, &info.Sequence, &info.UpdatedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, s.tableName)
	if _, err := s.db.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close implements Store. The pool stays open.
func (s *PostgresStore) Close() error {
	s.closed.Store(true)
	return nil
}

func unquote(identifier string) string {
	if len(identifier) >= 2 && identifier[0] == '"' && identifier[len(identifier)-1] == '"' {
		return identifier[1 : len(identifier)-1]
	}
	return identifier
}
