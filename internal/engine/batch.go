package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/petrijr/packflow/internal/allocation"
	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

// CreateBatch plans a batch in Draft. Cells are never taken from the
// request; they are allocated afterwards through AllocateCells.
func (e *engineImpl) CreateBatch(ctx context.Context, req api.CreateBatchRequest) (*api.BatchInstance, error) {
	return create(ctx, e, req, creation[*api.BatchInstance]{
		call:   call{op: "batch.create", flow: api.FlowBatch, actor: req.Actor},
		action: api.ActionCreateBatchPlan,
		prefix: "BATCH",
		build: func(now time.Time) (*api.BatchInstance, error) {
			if _, err := e.requireSku(ctx, req.Draft.SkuCode); err != nil {
				return nil, err
			}
			d := req.Draft
			d.AllocatedCells = []string{}
			d.CellsPerModule = 0
			d.RequiredCells = 0
			return &api.BatchInstance{State: api.BatchStateDraft, Draft: d}, nil
		},
	})
}

func batchMutation(op string, actor api.Actor, id string, action api.ActionID, can func(api.BatchState) bool, apply func(*api.BatchInstance, time.Time) (string, error)) mutation[*api.BatchInstance] {
	return mutation[*api.BatchInstance]{
		call: call{op: op, flow: api.FlowBatch, actor: actor},
		id:   id,
		apply: func(b *api.BatchInstance, now time.Time) (string, error) {
			if err := gate(b.State, can, guard.BatchItemAction, actor, action); err != nil {
				return "", err
			}
			return apply(b, now)
		},
	}
}

func (e *engineImpl) UpdateBatchDraft(ctx context.Context, req api.UpdateBatchDraftRequest) (*api.BatchInstance, error) {
	return mutate(ctx, e, req, batchMutation("batch.update_draft", req.Actor, req.InstanceID,
		api.ActionEditBatchPlan, transition.CanEditBatch,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			if req.SkuCode != "" && req.SkuCode != b.Draft.SkuCode {
				if _, err := e.requireSku(ctx, req.SkuCode); err != nil {
					return "", err
				}
				b.Draft.SkuCode = req.SkuCode
			}
			if req.BatchName != "" {
				b.Draft.BatchName = req.BatchName
			}
			if req.PlannedQuantity > 0 {
				b.Draft.PlannedQuantity = req.PlannedQuantity
			}
			if req.Notes != "" {
				b.Draft.Notes = req.Notes
			}
			if n := len(b.Draft.AllocatedCells); n > 0 {
				sku, err := e.requireSku(ctx, b.Draft.SkuCode)
				if err != nil {
					return "", err
				}
				required := allocation.Requirement(b.Draft.PlannedQuantity, sku.Draft.CellsPerModule)
				if n > required {
					return "", api.BadRequest("Plan requires %d cells but %d are allocated. Deallocate %d cells before reducing the plan.", required, n, n-required)
				}
			}
			return "", nil
		}))
}

// AllocateCells adds cells from the eligible pool. The whole request is
// rejected when any serial is ineligible or would overshoot the requirement.
func (e *engineImpl) AllocateCells(ctx context.Context, req api.CellsRequest) (*api.BatchInstance, error) {
	m := batchMutation("batch.allocate", req.Actor, req.InstanceID,
		api.ActionEditBatchPlan, transition.CanAllocateCells,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			required, err := e.batchRequirement(ctx, b)
			if err != nil {
				return "", err
			}
			pool, err := e.batchPool(ctx, b.InstanceID)
			if err != nil {
				return "", err
			}
			sel := allocation.NewSelection(required, b.Draft.AllocatedCells)
			if err := sel.AddAll(req.Serials, pool); err != nil {
				return "", err
			}
			b.Draft.AllocatedCells = sel.Cells()
			st := sel.Status()
			return fmt.Sprintf("allocated %d of %d cells", st.Allocated, st.Required), nil
		})
	m.locks = []string{lockCellPool}
	return mutate(ctx, e, req, m)
}

func (e *engineImpl) DeallocateCells(ctx context.Context, req api.CellsRequest) (*api.BatchInstance, error) {
	return mutate(ctx, e, req, batchMutation("batch.deallocate", req.Actor, req.InstanceID,
		api.ActionEditBatchPlan, transition.CanAllocateCells,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			sel := allocation.NewSelection(len(b.Draft.AllocatedCells), b.Draft.AllocatedCells)
			for _, s := range req.Serials {
				if !sel.Remove(s) {
					return "", api.BadRequest("Cell %s is not allocated to this batch", allocation.Normalize(s))
				}
			}
			b.Draft.AllocatedCells = sel.Cells()
			return fmt.Sprintf("released %d cells", len(req.Serials)), nil
		}))
}

func (e *engineImpl) BatchAllocation(ctx context.Context, instanceID string) (api.AllocationStatus, error) {
	b, err := getAs[*api.BatchInstance](ctx, e, api.FlowBatch, instanceID)
	if err != nil {
		return api.AllocationStatus{}, err
	}
	required := b.Draft.RequiredCells
	if required == 0 {
		sku, err := e.findSku(ctx, b.Draft.SkuCode)
		if err != nil {
			return api.AllocationStatus{}, err
		}
		if sku != nil {
			required = allocation.Requirement(b.Draft.PlannedQuantity, sku.Draft.CellsPerModule)
		}
	}
	return allocation.Status(required, len(b.Draft.AllocatedCells)), nil
}

func (e *engineImpl) EligibleCells(ctx context.Context, instanceID string) ([]string, error) {
	if _, err := getAs[*api.BatchInstance](ctx, e, api.FlowBatch, instanceID); err != nil {
		return nil, err
	}
	pool, err := e.batchPool(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return pool.Cells(), nil
}

// ApproveBatch locks the plan. The SKU must be Active and the allocation
// must match the requirement exactly; cells per module and the requirement
// are frozen on the batch.
func (e *engineImpl) ApproveBatch(ctx context.Context, req api.InstanceRequest) (*api.BatchInstance, error) {
	m := batchMutation("batch.approve", req.Actor, req.InstanceID,
		api.ActionLockBatchPlan, transition.CanApproveBatch,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			sku, err := e.requireSku(ctx, b.Draft.SkuCode)
			if err != nil {
				return "", err
			}
			if sku.State != api.SkuStateActive {
				return "", api.BadRequest("SKU %s is not Active (current state: %s)", sku.Draft.SkuCode, sku.State)
			}
			required := allocation.Requirement(b.Draft.PlannedQuantity, sku.Draft.CellsPerModule)
			if err := allocation.VerifyExact(required, len(b.Draft.AllocatedCells)); err != nil {
				return "", err
			}
			b.Draft.CellsPerModule = sku.Draft.CellsPerModule
			b.Draft.RequiredCells = required
			b.State = transition.NextStateOnApproveBatch()
			b.Approved = api.NewStamp(req.Actor, now)
			return fmt.Sprintf("locked %d cells", required), nil
		})
	m.locks = []string{lockSkuCatalog}
	return mutate(ctx, e, req, m)
}

func (e *engineImpl) StartBatch(ctx context.Context, req api.InstanceRequest) (*api.BatchInstance, error) {
	return mutate(ctx, e, req, batchMutation("batch.start", req.Actor, req.InstanceID,
		api.ActionReleaseBatchesToLine, transition.CanStartBatch,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			b.State = transition.NextStateOnStartBatch()
			b.Started = api.NewStamp(req.Actor, now)
			return "", nil
		}))
}

func (e *engineImpl) CompleteBatch(ctx context.Context, req api.InstanceRequest) (*api.BatchInstance, error) {
	return mutate(ctx, e, req, batchMutation("batch.complete", req.Actor, req.InstanceID,
		api.ActionCompleteBatch, transition.CanCompleteBatch,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			b.State = transition.NextStateOnCompleteBatch()
			b.Completed = api.NewStamp(req.Actor, now)
			return "", nil
		}))
}

// CancelBatch returns the batch's cells to the pool.
func (e *engineImpl) CancelBatch(ctx context.Context, req api.ReasonRequest) (*api.BatchInstance, error) {
	m := batchMutation("batch.cancel", req.Actor, req.InstanceID,
		api.ActionCancelBatch, transition.CanCancelBatch,
		func(b *api.BatchInstance, now time.Time) (string, error) {
			b.State = transition.NextStateOnCancelBatch()
			b.Cancelled = api.NewStamp(req.Actor, now)
			b.CancelReason = req.Reason
			return "", nil
		})
	m.locks = []string{lockCellPool}
	return mutate(ctx, e, req, m)
}

func (e *engineImpl) GetBatch(ctx context.Context, instanceID string) (*api.BatchInstance, error) {
	return getAs[*api.BatchInstance](ctx, e, api.FlowBatch, instanceID)
}

func (e *engineImpl) ListBatches(ctx context.Context) ([]*api.BatchInstance, error) {
	return list[*api.BatchInstance](ctx, e, api.FlowBatch)
}

func (e *engineImpl) requireSku(ctx context.Context, code string) (*api.SkuInstance, error) {
	sku, err := e.findSku(ctx, code)
	if err != nil {
		return nil, err
	}
	if sku == nil {
		return nil, api.BadRequest("Unknown SKU %s", code)
	}
	return sku, nil
}

// batchRequirement is the frozen requirement of an approved batch, or the
// live one computed from the SKU while planning.
func (e *engineImpl) batchRequirement(ctx context.Context, b *api.BatchInstance) (int, error) {
	if b.Draft.RequiredCells > 0 {
		return b.Draft.RequiredCells, nil
	}
	sku, err := e.requireSku(ctx, b.Draft.SkuCode)
	if err != nil {
		return 0, err
	}
	return allocation.Requirement(b.Draft.PlannedQuantity, sku.Draft.CellsPerModule), nil
}

func (e *engineImpl) batchPool(ctx context.Context, batchID string) (*allocation.Pool, error) {
	receipts, err := list[*api.ReceiptInstance](ctx, e, api.FlowReceipt)
	if err != nil {
		return nil, err
	}
	batches, err := list[*api.BatchInstance](ctx, e, api.FlowBatch)
	if err != nil {
		return nil, err
	}
	return allocation.BatchPool(receipts, batches, batchID), nil
}
