package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

func TestDelete_AdminOnly(t *testing.T) {
	h := newHarness(t)
	sku := h.activeSku("SKU-1", 2)

	err := h.eng.Delete(h.ctx, instanceReq(director, sku.InstanceID))
	requireCode(t, err, api.CodeForbidden)
	assert.Contains(t, err.Error(), "Requires System Admin Role")

	require.NoError(t, h.eng.Delete(h.ctx, instanceReq(admin, sku.InstanceID)))

	_, err = h.eng.Get(h.ctx, sku.InstanceID)
	requireCode(t, err, api.CodeNotFound)

	err = h.eng.Delete(h.ctx, instanceReq(admin, sku.InstanceID))
	requireCode(t, err, api.CodeNotFound)

	events, err := h.eng.History(h.ctx, sku.InstanceID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, api.EventFlowDeleted, last.Type)
	assert.Equal(t, "Active", last.From)
	assert.Equal(t, "admin", last.Actor)
	assert.Equal(t, api.RoleSystemAdmin, last.Role)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	sku := h.activeSku("SKU-1", 2)

	events, err := h.eng.History(h.ctx, sku.InstanceID)
	require.NoError(t, err)
	require.Len(t, events, 4)

	ops := make([]string, len(events))
	for i, ev := range events {
		ops[i] = ev.Operation
		assert.Equal(t, api.FlowSku, ev.FlowID)
	}
	assert.Equal(t, []string{"sku.create", "sku.submit", "sku.approve", "sku.activate"}, ops)
	assert.Equal(t, "engineer", events[0].Actor)
	assert.Equal(t, "Draft", events[0].To)
	assert.Equal(t, "Approved", events[3].From)
	assert.Equal(t, api.RoleManagement, events[3].Role)
	assert.True(t, events[0].At.Before(events[3].At))

	_, err = h.eng.History(h.ctx, "SKU-9999")
	requireCode(t, err, api.CodeNotFound)

	_, err = h.eng.History(h.ctx, " ")
	requireCode(t, err, api.CodeBadRequest)
}

func TestObserverSeesEveryOutcome(t *testing.T) {
	h := newHarness(t)
	sku := h.activeSku("SKU-1", 2)

	_, err := h.eng.RetireSku(h.ctx, instanceReq(operator, sku.InstanceID))
	requireCode(t, err, api.CodeForbidden)
	_, err = h.eng.ApproveSku(h.ctx, instanceReq(director, sku.InstanceID))
	requireCode(t, err, api.CodeStateConflict)
	_, err = h.eng.ApproveSku(h.ctx, api.InstanceRequest{Actor: director})
	requireCode(t, err, api.CodeBadRequest)

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	assert.Equal(t, []string{sku.InstanceID}, h.obs.created)
	require.Len(t, h.obs.transitions, 3)
	tr := h.obs.transitions[2]
	assert.Equal(t, "sku.activate", tr.Operation)
	assert.Equal(t, api.FlowSku, tr.Flow)
	assert.Equal(t, "Approved", tr.From)
	assert.Equal(t, "Active", tr.To)
	assert.Equal(t, director, tr.Actor)
	assert.Equal(t, []api.ErrorCode{api.CodeForbidden, api.CodeStateConflict, api.CodeBadRequest}, h.obs.rejected)
}

func TestListAndGet(t *testing.T) {
	h := newHarness(t)
	sku := h.activeSku("SKU-1", 2)
	h.qcPendingReceipt("GRN-1", cellRange(1, 2))

	all, err := h.eng.List(h.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	skus, err := h.eng.List(h.ctx, api.FlowSku)
	require.NoError(t, err)
	require.Len(t, skus, 1)
	assert.Equal(t, sku.InstanceID, skus[0].Meta().InstanceID)

	_, err = h.eng.List(h.ctx, "FLOW-999")
	requireCode(t, err, api.CodeBadRequest)

	_, err = h.eng.Get(h.ctx, "")
	requireCode(t, err, api.CodeBadRequest)

	_, err = h.eng.GetReceipt(h.ctx, sku.InstanceID)
	requireCode(t, err, api.CodeNotFound)
	assert.Contains(t, err.Error(), "is not a FLOW-003 instance")
}

func TestStoreVersionAdvancesPerWrite(t *testing.T) {
	h := newHarness(t)
	v0, err := h.eng.StoreVersion(h.ctx)
	require.NoError(t, err)

	h.activeSku("SKU-1", 2)

	v1, err := h.eng.StoreVersion(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, v0.Version+4, v1.Version)
}

// racingStore simulates a concurrent writer that commits between the
// engine's read and its write.
type racingStore struct {
	persistence.FlowStore
	once sync.Once
}

func (s *racingStore) Upsert(ctx context.Context, inst api.Instance) error {
	if inst.Meta().Revision > 1 {
		s.once.Do(func() {
			other := inst.Clone()
			other.Meta().Revision = inst.Meta().Revision
			_ = s.FlowStore.Upsert(ctx, other)
		})
	}
	return s.FlowStore.Upsert(ctx, inst)
}

func TestVersionConflict(t *testing.T) {
	mem := persistence.NewMemory()
	h := newHarnessWith(t, persistence.Persistence{Flows: &racingStore{FlowStore: mem.Flows}, Events: mem.Events})

	sku, err := h.eng.CreateSku(h.ctx, api.CreateSkuRequest{
		Actor: engineer,
		Draft: api.SkuDraft{SkuCode: "SKU-1", SkuName: "pack", CellsPerModule: 2},
	})
	require.NoError(t, err)

	_, err = h.eng.SubmitSkuForReview(h.ctx, instanceReq(engineer, sku.InstanceID))
	requireCode(t, err, api.CodeVersionConflict)

	events, err := h.eng.History(h.ctx, sku.InstanceID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "a rejected write records no history")
}

type failingEvents struct{}

func (failingEvents) AppendEvent(context.Context, api.FlowEvent) error {
	return errors.New("disk full")
}

func (failingEvents) ListEvents(context.Context, string) ([]api.FlowEvent, error) {
	return nil, nil
}

func TestHistoryFailureDoesNotFailTheCall(t *testing.T) {
	h := newHarnessWith(t, persistence.Persistence{Flows: persistence.NewMemoryStore(), Events: failingEvents{}})

	sku, err := h.eng.CreateSku(h.ctx, api.CreateSkuRequest{
		Actor: engineer,
		Draft: api.SkuDraft{SkuCode: "SKU-1", SkuName: "pack", CellsPerModule: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, api.SkuStateDraft, sku.State)

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	assert.Equal(t, []api.ErrorCode{api.CodeInternal}, h.obs.rejected)
	assert.Len(t, h.obs.created, 1)
}

func TestConcurrentAllocation_OneWinner(t *testing.T) {
	h := newHarness(t)
	h.activeSku("SKU-1", 2)
	h.releasedReceipt("GRN-1", cellRange(1, 2))

	const n = 8
	batches := make([]*api.BatchInstance, n)
	for i := range batches {
		batches[i] = h.draftBatch("SKU-1", 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.eng.AllocateCells(h.ctx, api.CellsRequest{
				Actor: planner, InstanceID: batches[i].InstanceID, Serials: cellRange(1, 2),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, api.CodeBadRequest)
	}
	assert.Equal(t, 1, wins)

	held := 0
	list, err := h.eng.ListBatches(h.ctx)
	require.NoError(t, err)
	for _, b := range list {
		held += len(b.Draft.AllocatedCells)
	}
	assert.Equal(t, 2, held)
}

func TestNewInMemoryEngine_RandomIDs(t *testing.T) {
	eng := NewInMemoryEngine()
	sku, err := eng.CreateSku(context.Background(), api.CreateSkuRequest{
		Actor: engineer,
		Draft: api.SkuDraft{SkuCode: "SKU-1", SkuName: "pack", CellsPerModule: 2},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^SKU-[0-9A-F]{8}$`, sku.InstanceID)
	assert.Equal(t, int64(1), sku.Revision)
}
