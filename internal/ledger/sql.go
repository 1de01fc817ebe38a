package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SQLStore keeps the ledger in SQLite or Postgres.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Init applies the ledger schema.
func (s *SQLStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			workspace TEXT NOT NULL,
			catalog TEXT NOT NULL,
			collection TEXT NOT NULL,
			item_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			status TEXT NOT NULL,
			item_key TEXT NOT NULL,
			location TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_workspace_created ON orders(workspace, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply ledger schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT INTO orders (id, workspace, catalog, collection, item_id, tag, status, item_key, location, created_at, updated_at)
		VALUES (:id, :workspace, :catalog, :collection, :item_id, :tag, :status, :item_key, :location, :created_at, :updated_at)`,
		e,
	); err != nil {
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return e, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`),
		status, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, workspace string, limit int) ([]Entry, error) {
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries,
		s.db.Rebind(`SELECT id, workspace, catalog, collection, item_id, tag, status, item_key, location, created_at, updated_at
		FROM orders WHERE workspace = ? ORDER BY created_at DESC LIMIT ?`),
		workspace, normalizeLimit(limit),
	); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
