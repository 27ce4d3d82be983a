package persistence

import (
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/internal/testutil"
)

func newTestPostgresDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", testutil.GetPostgresDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresStore(t *testing.T) {
	db := newTestPostgresDB(t)
	runFlowStoreSuite(t, func(t *testing.T) FlowStore {
		store, err := NewPostgresStore(db)
		require.NoError(t, err)
		_, err = db.Exec(`TRUNCATE flow_instances`)
		require.NoError(t, err)
		_, err = db.Exec(`UPDATE flow_store_meta SET version = 0, updated_at = 0 WHERE id = 1`)
		require.NoError(t, err)
		return store
	})
}

func TestSQLEventStore_Postgres(t *testing.T) {
	db := newTestPostgresDB(t)
	store, err := NewPostgresEventStore(db)
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE flow_events`)
	require.NoError(t, err)
	testEventStore(t, store)
}
