package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/petrijr/packflow/internal/allocation"
	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

// CreateModule starts an assembly session for an in-progress batch. The
// cell target comes from the batch, which froze it from the SKU on
// approval.
func (e *engineImpl) CreateModule(ctx context.Context, req api.CreateModuleRequest) (*api.ModuleInstance, error) {
	return create(ctx, e, req, creation[*api.ModuleInstance]{
		call:   call{op: "module.create", flow: api.FlowModule, actor: req.Actor},
		action: api.ActionStartModuleAssembly,
		prefix: "ASSY",
		locks:  []string{req.BatchID, lockSkuCatalog},
		build: func(now time.Time) (*api.ModuleInstance, error) {
			batch, err := load[*api.BatchInstance](ctx, e, api.FlowBatch, req.BatchID)
			if err != nil {
				if api.IsCode(err, api.CodeNotFound) {
					return nil, api.NotFound("Batch not found: %s", req.BatchID)
				}
				return nil, err
			}
			if !transition.CanStartModule(batch.State) {
				return nil, api.BadRequest("Batch must be InProgress to start assembly (current state: %s)", batch.State)
			}
			target := batch.Draft.CellsPerModule
			if target == 0 {
				sku, err := e.requireSku(ctx, batch.Draft.SkuCode)
				if err != nil {
					return nil, err
				}
				target = sku.Draft.CellsPerModule
			}
			return &api.ModuleInstance{
				State: api.ModuleStateInAssembly,
				Draft: api.ModuleDraft{
					BatchID:         batch.InstanceID,
					SkuCode:         batch.Draft.SkuCode,
					AssemblyStation: req.AssemblyStation,
					CellsPerModule:  target,
					CellSerials:     []string{},
				},
			}, nil
		},
	})
}

// moduleMutation holds the batch's module pool lock, so two modules of one
// batch never map the same cell.
func moduleMutation(op string, actor api.Actor, id string, action api.ActionID, can func(api.ModuleState) bool, apply func(*api.ModuleInstance, time.Time) (string, error)) mutation[*api.ModuleInstance] {
	return mutation[*api.ModuleInstance]{
		call: call{op: op, flow: api.FlowModule, actor: actor},
		id:   id,
		related: func(m *api.ModuleInstance) []string {
			return []string{modulePoolLock(m.Draft.BatchID)}
		},
		apply: func(m *api.ModuleInstance, now time.Time) (string, error) {
			if err := gate(m.State, can, guard.ModuleItemAction, actor, action); err != nil {
				return "", err
			}
			return apply(m, now)
		},
	}
}

func (e *engineImpl) AddModuleCells(ctx context.Context, req api.CellsRequest) (*api.ModuleInstance, error) {
	return mutate(ctx, e, req, moduleMutation("module.add_cells", req.Actor, req.InstanceID,
		api.ActionScanCells, transition.CanScanModuleCells,
		func(m *api.ModuleInstance, now time.Time) (string, error) {
			pool, err := e.modulePool(ctx, m)
			if err != nil {
				return "", err
			}
			sel := allocation.NewSelection(m.Draft.CellsPerModule, m.Draft.CellSerials)
			if err := sel.AddAll(req.Serials, pool); err != nil {
				return "", err
			}
			m.Draft.CellSerials = sel.Cells()
			return fmt.Sprintf("mapped %d of %d cells", sel.Len(), m.Draft.CellsPerModule), nil
		}))
}

func (e *engineImpl) RemoveModuleCells(ctx context.Context, req api.CellsRequest) (*api.ModuleInstance, error) {
	return mutate(ctx, e, req, moduleMutation("module.remove_cells", req.Actor, req.InstanceID,
		api.ActionScanCells, transition.CanScanModuleCells,
		func(m *api.ModuleInstance, now time.Time) (string, error) {
			sel := allocation.NewSelection(m.Draft.CellsPerModule, m.Draft.CellSerials)
			for _, s := range req.Serials {
				if !sel.Remove(s) {
					return "", api.BadRequest("Cell %s is not mapped to this module", allocation.Normalize(s))
				}
			}
			m.Draft.CellSerials = sel.Cells()
			return fmt.Sprintf("unmapped %d cells", len(req.Serials)), nil
		}))
}

// SerializeModule assigns MOD-<year>-<batch suffix>-<seq>. The sequence is
// one past the highest sequence already issued within the batch.
func (e *engineImpl) SerializeModule(ctx context.Context, req api.InstanceRequest) (*api.ModuleInstance, error) {
	return mutate(ctx, e, req, moduleMutation("module.serialize", req.Actor, req.InstanceID,
		api.ActionSerializeModule, transition.CanSerializeModule,
		func(m *api.ModuleInstance, now time.Time) (string, error) {
			if m.Draft.ModuleSerial != "" {
				return "", api.BadRequest("Module already serialized")
			}
			modules, err := list[*api.ModuleInstance](ctx, e, api.FlowModule)
			if err != nil {
				return "", err
			}
			prefix := fmt.Sprintf("MOD-%d-%s-", now.Year(), batchSuffix(m.Draft.BatchID))
			seq := 0
			for _, other := range modules {
				if other.Draft.BatchID != m.Draft.BatchID {
					continue
				}
				if n, ok := serialSeq(other.Draft.ModuleSerial, prefix); ok && n > seq {
					seq = n
				}
			}
			m.Draft.ModuleSerial = fmt.Sprintf("%s%04d", prefix, seq+1)
			m.Serialized = api.NewStamp(req.Actor, now)
			return m.Draft.ModuleSerial, nil
		}))
}

func batchSuffix(batchID string) string {
	if i := strings.LastIndex(batchID, "-"); i >= 0 {
		return batchID[i+1:]
	}
	return batchID
}

func serialSeq(serial, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(serial, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

// CompleteModule hands the module to QA. It needs a serial and exactly the
// target number of cells.
func (e *engineImpl) CompleteModule(ctx context.Context, req api.InstanceRequest) (*api.ModuleInstance, error) {
	return mutate(ctx, e, req, moduleMutation("module.complete", req.Actor, req.InstanceID,
		api.ActionCompleteModule, transition.CanCompleteModule,
		func(m *api.ModuleInstance, now time.Time) (string, error) {
			if m.Draft.ModuleSerial == "" {
				return "", api.BadRequest("Module not serialized")
			}
			if len(m.Draft.CellSerials) == 0 {
				return "", api.BadRequest("No cells mapped")
			}
			if err := allocation.VerifyExact(m.Draft.CellsPerModule, len(m.Draft.CellSerials)); err != nil {
				return "", err
			}
			m.State = transition.NextStateOnCompleteModule()
			m.Assembled = api.NewStamp(req.Actor, now)
			return "", nil
		}))
}

func (e *engineImpl) AcceptModuleQa(ctx context.Context, req api.InstanceRequest) (*api.ModuleInstance, error) {
	return mutate(ctx, e, req, moduleMutation("module.accept_qa", req.Actor, req.InstanceID,
		api.ActionAcceptModuleQA, transition.CanAcceptModuleQa,
		func(m *api.ModuleInstance, now time.Time) (string, error) {
			m.State = transition.NextStateOnAcceptModuleQa()
			m.QaAccepted = api.NewStamp(req.Actor, now)
			return "", nil
		}))
}

func (e *engineImpl) GetModule(ctx context.Context, instanceID string) (*api.ModuleInstance, error) {
	return getAs[*api.ModuleInstance](ctx, e, api.FlowModule, instanceID)
}

func (e *engineImpl) ListModules(ctx context.Context) ([]*api.ModuleInstance, error) {
	return list[*api.ModuleInstance](ctx, e, api.FlowModule)
}

func (e *engineImpl) modulePool(ctx context.Context, m *api.ModuleInstance) (*allocation.Pool, error) {
	batch, err := load[*api.BatchInstance](ctx, e, api.FlowBatch, m.Draft.BatchID)
	if err != nil && !api.IsCode(err, api.CodeNotFound) {
		return nil, err
	}
	modules, err := list[*api.ModuleInstance](ctx, e, api.FlowModule)
	if err != nil {
		return nil, err
	}
	return allocation.ModulePool(batch, modules, m.InstanceID), nil
}
