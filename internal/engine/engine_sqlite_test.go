package engine

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

func newSQLiteHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	flows, err := persistence.NewSQLiteStore(db)
	require.NoError(t, err)
	events, err := persistence.NewSQLiteEventStore(db)
	require.NoError(t, err)
	return newHarnessWith(t, persistence.Persistence{Flows: flows, Events: events})
}

func TestSQLiteEngine_BuildsAModule(t *testing.T) {
	h := newSQLiteHarness(t)
	h.activeSku("SKU-2S", 2)
	h.releasedReceipt("GRN-1", cellRange(1, 4))
	b := h.inProgressBatch("SKU-2S", 2, cellRange(1, 4))

	m, err := h.eng.CreateModule(h.ctx, api.CreateModuleRequest{Actor: operator, BatchID: b.InstanceID})
	require.NoError(t, err)
	_, err = h.eng.AddModuleCells(h.ctx, api.CellsRequest{Actor: operator, InstanceID: m.InstanceID, Serials: cellRange(3, 4)})
	require.NoError(t, err)
	_, err = h.eng.SerializeModule(h.ctx, instanceReq(operator, m.InstanceID))
	require.NoError(t, err)
	m, err = h.eng.CompleteModule(h.ctx, instanceReq(operator, m.InstanceID))
	require.NoError(t, err)
	assert.Equal(t, api.ModuleStatePendingQA, m.State)
	assert.Equal(t, int64(4), m.Revision)

	reloaded, err := h.eng.GetModule(h.ctx, m.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, m.Draft, reloaded.Draft)
	assert.True(t, m.UpdatedAt.Equal(reloaded.UpdatedAt))

	events, err := h.eng.History(h.ctx, m.InstanceID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "module.complete", events[3].Operation)
	assert.Equal(t, "InAssembly", events[3].From)
	assert.Equal(t, "PendingQA", events[3].To)
}

func TestNewSQLiteEngine(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	eng, err := NewSQLiteEngine(db)
	require.NoError(t, err)
	_, err = eng.Stage1Context(context.Background())
	require.NoError(t, err)
}
