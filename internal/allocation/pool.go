package allocation

import (
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

// Pool is the set of cells eligible for a selection.
type Pool struct {
	members map[string]struct{}
	order   []string

	// missing formats the rejection for a serial outside the pool.
	missing string
}

func newPool(missing string) *Pool {
	return &Pool{members: make(map[string]struct{}), missing: missing}
}

func (p *Pool) add(serial string) {
	serial = Normalize(serial)
	if _, ok := p.members[serial]; ok || serial == "" {
		return
	}
	p.members[serial] = struct{}{}
	p.order = append(p.order, serial)
}

func (p *Pool) exclude(serial string) {
	delete(p.members, Normalize(serial))
}

func (p *Pool) reject(serial string) error {
	return api.BadRequest(p.missing, serial)
}

// Contains reports whether serial is eligible.
func (p *Pool) Contains(serial string) bool {
	if p == nil {
		return false
	}
	_, ok := p.members[Normalize(serial)]
	return ok
}

// Cells returns the eligible cells in discovery order.
func (p *Pool) Cells() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.members))
	for _, c := range p.order {
		if _, ok := p.members[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.members)
}

// sourcesCells reports whether released cells of a receipt in state s may
// be allocated.
func sourcesCells(s api.ReceiptState) bool {
	switch s {
	case api.ReceiptStateReleased, api.ReceiptStateCompleted, api.ReceiptStateDisposition:
		return true
	}
	return false
}

// BatchPool returns the cells batchID may allocate: RELEASED items of
// receipts that have been dispositioned, minus cells held by any other
// batch that is not cancelled.
func BatchPool(receipts []*api.ReceiptInstance, batches []*api.BatchInstance, batchID string) *Pool {
	p := newPool("Cell %s is not in the eligible pool")
	for _, r := range receipts {
		if !sourcesCells(r.State) {
			continue
		}
		for _, it := range r.SerializedItems {
			if it.Disposition == api.DispositionReleased {
				p.add(it.SerialNumber)
			}
		}
	}
	for _, b := range batches {
		if b.InstanceID == batchID || !transition.HoldsCells(b.State) {
			continue
		}
		for _, c := range b.Draft.AllocatedCells {
			p.exclude(c)
		}
	}
	return p
}

// ModulePool returns the cells moduleID may scan: the cells allocated to
// its batch, minus cells already mapped into other modules of that batch.
func ModulePool(batch *api.BatchInstance, modules []*api.ModuleInstance, moduleID string) *Pool {
	p := newPool("Cell %s is not allocated to this batch")
	if batch == nil {
		return p
	}
	for _, c := range batch.Draft.AllocatedCells {
		p.add(c)
	}
	for _, m := range modules {
		if m.InstanceID == moduleID || m.Draft.BatchID != batch.InstanceID {
			continue
		}
		for _, c := range m.Draft.CellSerials {
			p.exclude(c)
		}
	}
	return p
}
