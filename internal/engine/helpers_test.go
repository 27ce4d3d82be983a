package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

var (
	admin      = api.Actor{Role: api.RoleSystemAdmin, Name: "admin"}
	director   = api.Actor{Role: api.RoleManagement, Name: "director"}
	engineer   = api.Actor{Role: api.RoleEngineering, Name: "engineer"}
	buyer      = api.Actor{Role: api.RoleProcurement, Name: "buyer"}
	storekeep  = api.Actor{Role: api.RoleStores, Name: "stores"}
	inspector  = api.Actor{Role: api.RoleQAEngineer, Name: "inspector"}
	supervisor = api.Actor{Role: api.RoleSupervisor, Name: "supervisor"}
	operator   = api.Actor{Role: api.RoleOperator, Name: "operator"}
	planner    = api.Actor{Role: api.RolePlanner, Name: "planner"}
)

var testEpoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// sequentialIDs yields PREFIX-0001, PREFIX-0002, ... shared across prefixes.
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) Next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", prefix, s.n)
}

// recordingObserver records all calls from the engine so we can assert on them.
type recordingObserver struct {
	mu          sync.Mutex
	created     []string
	transitions []api.Transition
	rejected    []api.ErrorCode
}

func (o *recordingObserver) OnCreated(ctx context.Context, inst api.Instance, actor api.Actor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, inst.Meta().InstanceID)
}

func (o *recordingObserver) OnTransition(ctx context.Context, t api.Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, t)
}

func (o *recordingObserver) OnRejected(ctx context.Context, flow api.FlowID, operation string, actor api.Actor, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, api.CodeOf(err))
}

type harness struct {
	t   *testing.T
	ctx context.Context
	eng api.Engine
	obs *recordingObserver
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, persistence.NewMemory())
}

func newHarnessWith(t *testing.T, p persistence.Persistence) *harness {
	t.Helper()
	obs := &recordingObserver{}
	clock := &stepClock{now: testEpoch}
	ids := &sequentialIDs{}
	eng := NewEngineWithConfig(Config{
		Persistence: p,
		Observer:    obs,
		Clock:       clock.Now,
		NewID:       ids.Next,
	})
	return &harness{t: t, ctx: context.Background(), eng: eng, obs: obs}
}

func requireCode(t *testing.T, err error, code api.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, api.CodeOf(err), "error: %v", err)
}

func cellRange(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("CELL-LFP-%04d", i))
	}
	return out
}

func instanceReq(a api.Actor, id string) api.InstanceRequest {
	return api.InstanceRequest{Actor: a, InstanceID: id}
}

func reasonReq(a api.Actor, id, reason string) api.ReasonRequest {
	return api.ReasonRequest{Actor: a, InstanceID: id, Reason: reason}
}

// activeSku walks a SKU from Draft to Active.
func (h *harness) activeSku(code string, cellsPerModule int) *api.SkuInstance {
	h.t.Helper()
	sku, err := h.eng.CreateSku(h.ctx, api.CreateSkuRequest{
		Actor: engineer,
		Draft: api.SkuDraft{SkuCode: code, SkuName: code + " pack", Chemistry: "LFP", CellsPerModule: cellsPerModule},
	})
	require.NoError(h.t, err)
	_, err = h.eng.SubmitSkuForReview(h.ctx, instanceReq(engineer, sku.InstanceID))
	require.NoError(h.t, err)
	_, err = h.eng.ApproveSku(h.ctx, instanceReq(director, sku.InstanceID))
	require.NoError(h.t, err)
	sku, err = h.eng.ActivateSku(h.ctx, instanceReq(director, sku.InstanceID))
	require.NoError(h.t, err)
	return sku
}

// qcPendingReceipt records and serializes a receipt and submits it for QC.
func (h *harness) qcPendingReceipt(grn string, serials []string) *api.ReceiptInstance {
	h.t.Helper()
	r, err := h.eng.CreateReceipt(h.ctx, api.CreateReceiptRequest{
		Actor: storekeep,
		Draft: api.ReceiptDraft{
			GRNNumber:         grn,
			SupplierName:      "Cellforge Ltd",
			PONumber:          "PO-2026-001",
			SupplierLotNumber: "LOT-7",
			MaterialCode:      "CELL-LFP",
			QuantityReceived:  len(serials),
		},
	})
	require.NoError(h.t, err)
	_, err = h.eng.SerializeReceipt(h.ctx, api.SerializeReceiptRequest{Actor: storekeep, InstanceID: r.InstanceID, Serials: serials})
	require.NoError(h.t, err)
	r, err = h.eng.SubmitReceiptQc(h.ctx, instanceReq(inspector, r.InstanceID))
	require.NoError(h.t, err)
	return r
}

// releasedReceipt passes and releases every serial.
func (h *harness) releasedReceipt(grn string, serials []string) *api.ReceiptInstance {
	h.t.Helper()
	r := h.qcPendingReceipt(grn, serials)
	_, err := h.eng.CompleteReceiptQc(h.ctx, api.CompleteQcRequest{Actor: inspector, InstanceID: r.InstanceID, Decision: api.QcPass})
	require.NoError(h.t, err)
	r, err = h.eng.ReleaseReceipt(h.ctx, reasonReq(storekeep, r.InstanceID, ""))
	require.NoError(h.t, err)
	require.Equal(h.t, api.ReceiptStateReleased, r.State)
	return r
}

func (h *harness) draftBatch(skuCode string, planned int) *api.BatchInstance {
	h.t.Helper()
	b, err := h.eng.CreateBatch(h.ctx, api.CreateBatchRequest{
		Actor: planner,
		Draft: api.BatchDraft{BatchName: "Line 1", SkuCode: skuCode, PlannedQuantity: planned},
	})
	require.NoError(h.t, err)
	return b
}

// inProgressBatch plans, allocates, approves and starts a batch.
func (h *harness) inProgressBatch(skuCode string, planned int, cells []string) *api.BatchInstance {
	h.t.Helper()
	b := h.draftBatch(skuCode, planned)
	_, err := h.eng.AllocateCells(h.ctx, api.CellsRequest{Actor: planner, InstanceID: b.InstanceID, Serials: cells})
	require.NoError(h.t, err)
	_, err = h.eng.ApproveBatch(h.ctx, instanceReq(director, b.InstanceID))
	require.NoError(h.t, err)
	b, err = h.eng.StartBatch(h.ctx, instanceReq(director, b.InstanceID))
	require.NoError(h.t, err)
	return b
}
