package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/resource-catalogue/internal/dbutil"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSQLStore_Append(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO orders \(id, workspace, catalog`).
		WithArgs(sqlmock.AnyArg(), "ws", "airbus", "airbus_sar_data", "item-1", "_GEC", "pending",
			"ws/commercial-data/airbus/airbus_sar_data/item-1_GEC.json", "https://x/item-1_GEC",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e, err := store.Append(context.Background(), Entry{
		Workspace:  "ws",
		Catalog:    "airbus",
		Collection: "airbus_sar_data",
		ItemID:     "item-1",
		Tag:        "_GEC",
		Status:     "pending",
		ItemKey:    "ws/commercial-data/airbus/airbus_sar_data/item-1_GEC.json",
		Location:   "https://x/item-1_GEC",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE orders SET status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("failed", sqlmock.AnyArg(), "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateStatus(context.Background(), "abc", "failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateStatusMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE orders`).
		WithArgs("failed", sqlmock.AnyArg(), "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.UpdateStatus(context.Background(), "nope", "failed"), ErrNotFound)
}

func TestSQLStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "workspace", "catalog", "collection", "item_id", "tag", "status", "item_key", "location", "created_at", "updated_at"}).
		AddRow("2", "ws", "planet", "PSScene", "b", "_Visual", "pending", "k2", "l2", now, now).
		AddRow("1", "ws", "airbus", "airbus_phr_data", "a", "_Basic", "failed", "k1", "l1", now.Add(-time.Hour), now)
	mock.ExpectQuery(`SELECT id, workspace, catalog, collection, item_id, tag, status, item_key, location, created_at, updated_at\s+FROM orders WHERE workspace = \? ORDER BY created_at DESC LIMIT \?`).
		WithArgs("ws", DefaultLimit).
		WillReturnRows(rows)

	entries, err := store.List(context.Background(), "ws", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ID)
	assert.Equal(t, "PSScene", entries[0].Collection)
	assert.Equal(t, "failed", entries[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	db, err := dbutil.Open(dbutil.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	store := NewSQLStore(db)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	first, err := store.Append(ctx, Entry{Workspace: "ws", Catalog: "airbus", Collection: "c", ItemID: "a", Status: "pending"})
	require.NoError(t, err)
	store.now = func() time.Time { return first.CreatedAt.Add(time.Minute) }
	second, err := store.Append(ctx, Entry{Workspace: "ws", Catalog: "airbus", Collection: "c", ItemID: "b", Status: "pending"})
	require.NoError(t, err)
	_, err = store.Append(ctx, Entry{Workspace: "other", Catalog: "airbus", Collection: "c", ItemID: "c", Status: "pending"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, first.ID, "failed"))

	entries, err := store.List(ctx, "ws", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, "failed", entries[1].Status)
}

func TestDiscard(t *testing.T) {
	var s Store = Discard{}
	e, err := s.Append(context.Background(), Entry{ItemID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", e.ItemID)
	entries, err := s.List(context.Background(), "ws", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
