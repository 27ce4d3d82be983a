// Package fixtures loads seed data into a flow store. Seeds are YAML
// documents checked against a CUE schema before they are decoded.
package fixtures

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/packflow/internal/allocation"
	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

//go:embed seed.yaml
var defaultSeed []byte

// Default returns the built-in pilot plant seed.
func Default() []byte {
	return bytes.Clone(defaultSeed)
}

// Range expands to Prefix-0001 ... Prefix-NNNN.
type Range struct {
	Prefix string `yaml:"prefix"`
	From   int    `yaml:"from"`
	To     int    `yaml:"to"`
	Width  int    `yaml:"width,omitempty"`
}

// Serials returns the normalized serials of the range.
func (r Range) Serials() []string {
	if r.To < r.From {
		return nil
	}
	width := r.Width
	if width == 0 {
		width = 4
	}
	out := make([]string, 0, r.To-r.From+1)
	for i := r.From; i <= r.To; i++ {
		out = append(out, allocation.Normalize(fmt.Sprintf("%s-%0*d", r.Prefix, width, i)))
	}
	return out
}

type Sku struct {
	ID             string  `yaml:"id"`
	State          string  `yaml:"state"`
	Code           string  `yaml:"code"`
	Name           string  `yaml:"name"`
	Chemistry      string  `yaml:"chemistry,omitempty"`
	FormFactor     string  `yaml:"formFactor,omitempty"`
	NominalVoltage float64 `yaml:"nominalVoltage,omitempty"`
	CapacityAh     float64 `yaml:"capacityAh,omitempty"`
	CellsPerModule int     `yaml:"cellsPerModule"`
	Notes          string  `yaml:"notes,omitempty"`
	ApprovedBy     string  `yaml:"approvedBy,omitempty"`
}

type PurchaseOrder struct {
	ID           string `yaml:"id"`
	State        string `yaml:"state"`
	Number       string `yaml:"number"`
	Supplier     string `yaml:"supplier"`
	MaterialCode string `yaml:"materialCode,omitempty"`
	SkuCode      string `yaml:"skuCode,omitempty"`
	Quantity     int    `yaml:"quantity"`
	UOM          string `yaml:"uom,omitempty"`
	ApprovedBy   string `yaml:"approvedBy,omitempty"`
}

type Receipt struct {
	ID           string `yaml:"id"`
	State        string `yaml:"state"`
	GRN          string `yaml:"grn"`
	Supplier     string `yaml:"supplier"`
	PONumber     string `yaml:"poNumber,omitempty"`
	Lot          string `yaml:"lot,omitempty"`
	MaterialCode string `yaml:"materialCode,omitempty"`
	UOM          string `yaml:"uom,omitempty"`
	Serials      Range  `yaml:"serials"`
	InspectedBy  string `yaml:"inspectedBy,omitempty"`
}

type Batch struct {
	ID              string `yaml:"id"`
	State           string `yaml:"state"`
	Name            string `yaml:"name"`
	SkuCode         string `yaml:"skuCode"`
	PlannedQuantity int    `yaml:"plannedQuantity"`
	Cells           *Range `yaml:"cells,omitempty"`
	ApprovedBy      string `yaml:"approvedBy,omitempty"`
}

// Seed is a decoded seed document.
type Seed struct {
	Skus           []Sku           `yaml:"skus"`
	PurchaseOrders []PurchaseOrder `yaml:"purchaseOrders"`
	Receipts       []Receipt       `yaml:"receipts"`
	Batches        []Batch         `yaml:"batches"`
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte) (*Seed, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Seed
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("fixtures: decode: %w", err)
	}
	return &s, nil
}

// Instances converts the seed into flow instances stamped at now, in
// dependency order. Batches must reference a seeded SKU and only cells
// released by a seeded receipt.
func (s *Seed) Instances(now time.Time) ([]api.Instance, error) {
	now = now.UTC()
	env := func(flow api.FlowID, id string) api.Envelope {
		return api.Envelope{FlowID: flow, InstanceID: id, CreatedAt: now, UpdatedAt: now, Revision: 1}
	}
	stamp := func(by string) *api.Stamp {
		if by == "" {
			by = string(api.RoleSystemAdmin)
		}
		return &api.Stamp{By: by, At: now}
	}

	var out []api.Instance
	ids := make(map[string]struct{})
	add := func(inst api.Instance) error {
		id := inst.Meta().InstanceID
		if _, dup := ids[id]; dup {
			return fmt.Errorf("fixtures: duplicate instance id %s", id)
		}
		ids[id] = struct{}{}
		out = append(out, inst)
		return nil
	}

	cpm := make(map[string]int)
	for _, f := range s.Skus {
		sku := &api.SkuInstance{
			Envelope: env(api.FlowSku, f.ID),
			State:    api.SkuState(f.State),
			Draft: api.SkuDraft{
				SkuCode:        f.Code,
				SkuName:        f.Name,
				Chemistry:      f.Chemistry,
				FormFactor:     f.FormFactor,
				NominalVoltage: f.NominalVoltage,
				CapacityAh:     f.CapacityAh,
				CellsPerModule: f.CellsPerModule,
				Notes:          f.Notes,
			},
		}
		switch sku.State {
		case api.SkuStateApproved:
			sku.Approved = stamp(f.ApprovedBy)
		case api.SkuStateActive, api.SkuStateObsolete:
			sku.Approved = stamp(f.ApprovedBy)
			sku.Activated = stamp(f.ApprovedBy)
			if sku.State == api.SkuStateObsolete {
				sku.Retired = stamp(f.ApprovedBy)
			}
		}
		if err := add(sku); err != nil {
			return nil, err
		}
		cpm[f.Code] = f.CellsPerModule
	}

	for _, f := range s.PurchaseOrders {
		po := &api.PurchaseOrderInstance{
			Envelope: env(api.FlowPurchaseOrder, f.ID),
			State:    api.PurchaseOrderState(f.State),
			Draft: api.PurchaseOrderDraft{
				PONumber:     f.Number,
				SupplierName: f.Supplier,
				MaterialCode: f.MaterialCode,
				SkuCode:      f.SkuCode,
				Quantity:     f.Quantity,
				UOM:          f.UOM,
			},
		}
		switch po.State {
		case api.PoStateApproved, api.PoStateIssued, api.PoStateClosed:
			po.Approvals = []api.Stamp{*stamp(f.ApprovedBy)}
			if po.State != api.PoStateApproved {
				po.Issued = stamp(f.ApprovedBy)
			}
			if po.State == api.PoStateClosed {
				po.Closed = stamp(f.ApprovedBy)
			}
		}
		if err := add(po); err != nil {
			return nil, err
		}
	}

	released := make(map[string]struct{})
	for _, f := range s.Receipts {
		r := &api.ReceiptInstance{
			Envelope: env(api.FlowReceipt, f.ID),
			State:    api.ReceiptState(f.State),
			Draft: api.ReceiptDraft{
				GRNNumber:         f.GRN,
				SupplierName:      f.Supplier,
				PONumber:          f.PONumber,
				SupplierLotNumber: f.Lot,
				MaterialCode:      f.MaterialCode,
				UOM:               f.UOM,
				ReceivedDate:      now.Format(time.DateOnly),
			},
		}
		serials := f.Serials.Serials()
		r.Draft.QuantityReceived = len(serials)
		if r.State != api.ReceiptStateReceived {
			r.Serialized = stamp(f.InspectedBy)
			status, disp := itemOutcome(r.State)
			for _, sn := range serials {
				r.SerializedItems = append(r.SerializedItems, api.SerializedItem{
					SerialNumber:      sn,
					Status:            status,
					Disposition:       disp,
					PONumber:          f.PONumber,
					SupplierLotNumber: f.Lot,
				})
				if disp == api.DispositionReleased {
					released[sn] = struct{}{}
				}
			}
		}
		switch r.State {
		case api.ReceiptStateDisposition, api.ReceiptStateBlocked, api.ReceiptStateReleased,
			api.ReceiptStateScrapped, api.ReceiptStateCompleted:
			r.QC = stamp(f.InspectedBy)
			r.QcDecision = api.QcPass
			if r.State == api.ReceiptStateScrapped {
				r.QcDecision = api.QcFail
			}
		}
		switch r.State {
		case api.ReceiptStateReleased, api.ReceiptStateCompleted:
			r.Released = stamp(f.InspectedBy)
		case api.ReceiptStateScrapped:
			r.Scrapped = stamp(f.InspectedBy)
		case api.ReceiptStateBlocked:
			r.Blocked = stamp(f.InspectedBy)
		}
		if err := add(r); err != nil {
			return nil, err
		}
	}

	claimed := make(map[string]string)
	for _, f := range s.Batches {
		perModule, ok := cpm[f.SkuCode]
		if !ok {
			return nil, fmt.Errorf("fixtures: batch %s references unknown SKU %s", f.ID, f.SkuCode)
		}
		b := &api.BatchInstance{
			Envelope: env(api.FlowBatch, f.ID),
			State:    api.BatchState(f.State),
			Draft: api.BatchDraft{
				BatchName:       f.Name,
				SkuCode:         f.SkuCode,
				PlannedQuantity: f.PlannedQuantity,
				AllocatedCells:  []string{},
			},
		}
		if f.Cells != nil {
			b.Draft.AllocatedCells = f.Cells.Serials()
		}
		for _, sn := range b.Draft.AllocatedCells {
			if _, ok := released[sn]; !ok {
				return nil, fmt.Errorf("fixtures: batch %s allocates %s which is not released inventory", f.ID, sn)
			}
			if other, taken := claimed[sn]; taken {
				return nil, fmt.Errorf("fixtures: cell %s allocated to both %s and %s", sn, other, f.ID)
			}
			claimed[sn] = f.ID
		}
		if b.State != api.BatchStateDraft {
			b.Draft.CellsPerModule = perModule
			b.Draft.RequiredCells = allocation.Requirement(f.PlannedQuantity, perModule)
			b.Approved = stamp(f.ApprovedBy)
		}
		switch b.State {
		case api.BatchStateInProgress:
			b.Started = stamp(f.ApprovedBy)
		case api.BatchStateCompleted:
			b.Started = stamp(f.ApprovedBy)
			b.Completed = stamp(f.ApprovedBy)
		case api.BatchStateCancelled:
			b.Cancelled = stamp(f.ApprovedBy)
			b.CancelReason = "Seeded"
		}
		if err := add(b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func itemOutcome(s api.ReceiptState) (api.ItemStatus, api.Disposition) {
	switch s {
	case api.ReceiptStateReleased, api.ReceiptStateCompleted:
		return api.ItemPassed, api.DispositionReleased
	case api.ReceiptStateScrapped:
		return api.ItemFailed, api.DispositionScrapped
	case api.ReceiptStateBlocked:
		return api.ItemBlocked, api.DispositionNone
	case api.ReceiptStateDisposition:
		return api.ItemPassed, api.DispositionNone
	default:
		return api.ItemPendingQC, api.DispositionNone
	}
}

// Summary reports what Load did.
type Summary struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// Load writes every seeded instance that does not exist yet, so loading the
// same seed twice is harmless. Each created instance gets a flow.created
// history event with operation "seed".
func Load(ctx context.Context, p persistence.Persistence, seed *Seed, now time.Time) (Summary, error) {
	insts, err := seed.Instances(now)
	if err != nil {
		return Summary{}, err
	}
	events := p.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}

	var sum Summary
	for _, inst := range insts {
		m := inst.Meta()
		err := p.Flows.Upsert(ctx, inst)
		if errors.Is(err, persistence.ErrVersionConflict) {
			sum.Skipped = append(sum.Skipped, m.InstanceID)
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("fixtures: write %s: %w", m.InstanceID, err)
		}
		sum.Created = append(sum.Created, m.InstanceID)
		if err := events.AppendEvent(ctx, api.FlowEvent{
			InstanceID: m.InstanceID,
			FlowID:     inst.Flow(),
			At:         m.CreatedAt,
			Type:       api.EventFlowCreated,
			Operation:  "seed",
			To:         inst.StateName(),
			Actor:      string(api.RoleSystemAdmin),
			Role:       api.RoleSystemAdmin,
		}); err != nil {
			return sum, fmt.Errorf("fixtures: history %s: %w", m.InstanceID, err)
		}
	}
	return sum, nil
}

// LoadDefault parses and loads the built-in seed.
func LoadDefault(ctx context.Context, p persistence.Persistence, now time.Time) (Summary, error) {
	seed, err := Parse(defaultSeed)
	if err != nil {
		return Summary{}, err
	}
	return Load(ctx, p, seed, now)
}
