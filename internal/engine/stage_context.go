package engine

import (
	"context"

	"github.com/petrijr/packflow/internal/allocation"
	"github.com/petrijr/packflow/pkg/api"
)

// plant is one consistent read of every instance, split by flow type.
type plant struct {
	skus     []*api.SkuInstance
	pos      []*api.PurchaseOrderInstance
	receipts []*api.ReceiptInstance
	batches  []*api.BatchInstance
	modules  []*api.ModuleInstance
}

func (e *engineImpl) readPlant(ctx context.Context) (*plant, error) {
	all, err := e.store.List(ctx, "")
	if err != nil {
		return nil, api.Internal(err)
	}
	p := &plant{}
	for _, inst := range all {
		switch v := inst.(type) {
		case *api.SkuInstance:
			p.skus = append(p.skus, v)
		case *api.PurchaseOrderInstance:
			p.pos = append(p.pos, v)
		case *api.ReceiptInstance:
			p.receipts = append(p.receipts, v)
		case *api.BatchInstance:
			p.batches = append(p.batches, v)
		case *api.ModuleInstance:
			p.modules = append(p.modules, v)
		}
	}
	return p, nil
}

func dependency(ready bool) api.Dependency {
	if ready {
		return api.DependencyOK
	}
	return api.DependencyBlocked
}

func (p *plant) activeSkus() int {
	n := 0
	for _, s := range p.skus {
		if s.State == api.SkuStateActive {
			n++
		}
	}
	return n
}

// Stage1Context never blocks: system setup is outside the engine.
func (e *engineImpl) Stage1Context(ctx context.Context) (api.S1Context, error) {
	p, err := e.readPlant(ctx)
	if err != nil {
		return api.S1Context{}, err
	}
	c := api.S1Context{SystemSetupDependency: api.DependencyOK, ActiveSkuCount: p.activeSkus()}
	for _, s := range p.skus {
		if s.State == api.SkuStateDraft {
			c.DraftSkuCount++
		}
	}
	return c, nil
}

func (e *engineImpl) Stage2Context(ctx context.Context) (api.S2Context, error) {
	p, err := e.readPlant(ctx)
	if err != nil {
		return api.S2Context{}, err
	}
	c := api.S2Context{BlueprintDependency: dependency(p.activeSkus() > 0)}
	for _, po := range p.pos {
		switch po.State {
		case api.PoStateSubmitted:
			c.PendingApprovalCount++
			c.ActivePoCount++
		case api.PoStateApproved, api.PoStateIssued:
			c.ActivePoCount++
		}
	}
	return c, nil
}

// Stage3Context derives the inbound status from the receipt in focus. An
// empty receiptID means no receipt has been recorded in this session.
func (e *engineImpl) Stage3Context(ctx context.Context, receiptID string) (api.S3Context, error) {
	p, err := e.readPlant(ctx)
	if err != nil {
		return api.S3Context{}, err
	}

	procured := len(p.receipts) > 0
	for _, po := range p.pos {
		switch po.State {
		case api.PoStateApproved, api.PoStateIssued, api.PoStateClosed:
			procured = true
		}
	}

	c := api.S3Context{
		InboundShipmentCount:  len(p.receipts),
		InboundStatus:         api.InboundAwaitingReceipt,
		ProcurementDependency: dependency(procured),
	}
	var focus *api.ReceiptInstance
	for _, r := range p.receipts {
		switch r.State {
		case api.ReceiptStateReceived:
			c.ItemsAwaitingSerializationCount += r.Draft.QuantityReceived
		case api.ReceiptStateSerialized, api.ReceiptStateQCPending:
			c.LotsAwaitingInspectionCount++
		}
		c.SerializedItemsCount += len(r.SerializedItems)
		if r.InstanceID == receiptID {
			focus = r
		}
	}
	if receiptID != "" {
		if focus == nil {
			return api.S3Context{}, api.NotFound("Flow not found: %s", receiptID)
		}
		c.InboundStatus = inboundStatus(focus.State)
	}
	return c, nil
}

func inboundStatus(s api.ReceiptState) api.InboundStatus {
	switch s {
	case api.ReceiptStateReceived:
		return api.InboundReceived
	case api.ReceiptStateSerialized:
		return api.InboundSerialized
	case api.ReceiptStateQCPending:
		return api.InboundQCPending
	case api.ReceiptStateDisposition, api.ReceiptStateBlocked:
		return api.InboundDisposition
	}
	if s.Terminal() {
		return api.InboundCompleted
	}
	return api.InboundAwaitingReceipt
}

// Stage4Context reports the cells a new batch could allocate.
func (e *engineImpl) Stage4Context(ctx context.Context) (api.S4Context, error) {
	p, err := e.readPlant(ctx)
	if err != nil {
		return api.S4Context{}, err
	}
	released := allocation.BatchPool(p.receipts, p.batches, "").Len()
	c := api.S4Context{ReleasedCellCount: released, InboundDependency: dependency(released > 0)}
	for _, b := range p.batches {
		switch b.State {
		case api.BatchStateDraft:
			c.DraftBatchCount++
		case api.BatchStateApproved, api.BatchStateInProgress:
			c.ActiveBatchCount++
		}
	}
	return c, nil
}

func (e *engineImpl) Stage5Context(ctx context.Context) (api.S5Context, error) {
	p, err := e.readPlant(ctx)
	if err != nil {
		return api.S5Context{}, err
	}
	var c api.S5Context
	for _, b := range p.batches {
		if b.State == api.BatchStateInProgress {
			c.InProgressBatchCount++
		}
	}
	for _, m := range p.modules {
		if m.State == api.ModuleStateInAssembly {
			c.ModulesInAssembly++
		}
	}
	c.BatchDependency = dependency(c.InProgressBatchCount > 0)
	return c, nil
}
