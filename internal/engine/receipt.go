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

// legacySupplier is shown for receipts recorded before the supplier name
// became mandatory.
const legacySupplier = "Legacy / Unknown Supplier"

func (e *engineImpl) CreateReceipt(ctx context.Context, req api.CreateReceiptRequest) (*api.ReceiptInstance, error) {
	return create(ctx, e, req, creation[*api.ReceiptInstance]{
		call:   call{op: "inbound.create", flow: api.FlowReceipt, actor: req.Actor},
		action: api.ActionRecordReceipt,
		prefix: "INB",
		build: func(now time.Time) (*api.ReceiptInstance, error) {
			return &api.ReceiptInstance{State: api.ReceiptStateReceived, Draft: req.Draft}, nil
		},
	})
}

func receiptMutation(op string, actor api.Actor, id string, action api.ActionID, can func(api.ReceiptState) bool, apply func(*api.ReceiptInstance, time.Time) (string, error)) mutation[*api.ReceiptInstance] {
	return mutation[*api.ReceiptInstance]{
		call: call{op: op, flow: api.FlowReceipt, actor: actor},
		id:   id,
		apply: func(r *api.ReceiptInstance, now time.Time) (string, error) {
			if err := gate(r.State, can, guard.ReceiptItemAction, actor, action); err != nil {
				return "", err
			}
			return apply(r, now)
		},
	}
}

// SerializeReceipt assigns one serial per received unit. Explicit serials
// are normalized and must be unique across all receipts; without them the
// engine numbers the units from the request prefix, the material code or
// the GRN number.
func (e *engineImpl) SerializeReceipt(ctx context.Context, req api.SerializeReceiptRequest) (*api.ReceiptInstance, error) {
	m := receiptMutation("inbound.serialize", req.Actor, req.InstanceID,
		api.ActionVerifySerialization, transition.CanSerializeReceipt,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			serials := req.Serials
			if len(serials) == 0 {
				serials = generateSerials(serialPrefix(req.SerialPrefix, r.Draft), r.Draft.QuantityReceived)
			}
			if len(serials) != r.Draft.QuantityReceived {
				return "", api.BadRequest("Serial count %d does not match quantity received %d", len(serials), r.Draft.QuantityReceived)
			}
			taken, err := e.serialOwners(ctx, r.InstanceID)
			if err != nil {
				return "", err
			}
			items := make([]api.SerializedItem, 0, len(serials))
			seen := make(map[string]struct{}, len(serials))
			for _, s := range serials {
				s = allocation.Normalize(s)
				if _, dup := seen[s]; dup {
					return "", api.BadRequest("Duplicate serial %s", s)
				}
				if owner, ok := taken[s]; ok {
					return "", api.BadRequest("Serial %s already exists on receipt %s", s, owner)
				}
				seen[s] = struct{}{}
				items = append(items, api.SerializedItem{
					SerialNumber:      s,
					Status:            api.ItemPendingQC,
					PONumber:          r.Draft.PONumber,
					SupplierLotNumber: r.Draft.SupplierLotNumber,
				})
			}
			r.SerializedItems = items
			r.State = transition.NextStateOnSerializeReceipt()
			r.Serialized = api.NewStamp(req.Actor, now)
			return fmt.Sprintf("serialized %d items", len(items)), nil
		})
	m.locks = []string{lockSerials}
	return mutate(ctx, e, req, m)
}

func serialPrefix(requested string, d api.ReceiptDraft) string {
	switch {
	case requested != "":
		return requested
	case d.MaterialCode != "":
		return d.MaterialCode
	default:
		return d.GRNNumber
	}
}

func generateSerials(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%04d", prefix, i+1)
	}
	return out
}

// serialOwners maps every serial of every other receipt to its receipt id.
func (e *engineImpl) serialOwners(ctx context.Context, self string) (map[string]string, error) {
	receipts, err := list[*api.ReceiptInstance](ctx, e, api.FlowReceipt)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]string)
	for _, r := range receipts {
		if r.InstanceID == self {
			continue
		}
		for _, it := range r.SerializedItems {
			owners[it.SerialNumber] = r.InstanceID
		}
	}
	return owners, nil
}

func (e *engineImpl) SubmitReceiptQc(ctx context.Context, req api.InstanceRequest) (*api.ReceiptInstance, error) {
	return mutate(ctx, e, req, receiptMutation("inbound.submit_qc", req.Actor, req.InstanceID,
		api.ActionStartQC, transition.CanSubmitQc,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			r.State = transition.NextStateOnSubmitQc()
			r.QcSubmitted = api.NewStamp(req.Actor, now)
			return "", nil
		}))
}

// CompleteReceiptQc classifies every item. Per-item results win, then the
// pass quantity, then the lot decision.
func (e *engineImpl) CompleteReceiptQc(ctx context.Context, req api.CompleteQcRequest) (*api.ReceiptInstance, error) {
	return mutate(ctx, e, req, receiptMutation("inbound.complete_qc", req.Actor, req.InstanceID,
		api.ActionCompleteQC, transition.CanCompleteQc,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			result := transition.QcResult{Decision: req.Decision, PassQuantity: req.PassQuantity}
			if len(req.ItemResults) > 0 {
				result.ItemResults = make(map[string]api.ItemStatus, len(req.ItemResults))
				for _, ir := range req.ItemResults {
					result.ItemResults[allocation.Normalize(ir.SerialNumber)] = ir.Status
				}
			}
			items, err := transition.ClassifyQc(r.SerializedItems, result)
			if err != nil {
				return "", api.BadRequest("QC result rejected: %v", err)
			}
			r.SerializedItems = items
			r.State = transition.NextStateOnCompleteQc()
			r.QC = api.NewStamp(req.Actor, now)
			r.QcDecision = req.Decision
			r.QcRemarks = req.Remarks

			c := transition.CountItems(items)
			return fmt.Sprintf("%d passed, %d blocked, %d failed", c.Passed, c.Blocked, c.Failed), nil
		}))
}

func (e *engineImpl) BlockReceipt(ctx context.Context, req api.ReasonRequest) (*api.ReceiptInstance, error) {
	return mutate(ctx, e, req, receiptMutation("inbound.block", req.Actor, req.InstanceID,
		api.ActionBlockInventory, transition.CanBlockReceipt,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			r.State = transition.NextStateOnBlockReceipt()
			r.BlockReason = req.Reason
			if r.Blocked == nil {
				r.Blocked = api.NewStamp(req.Actor, now)
			}
			return "", nil
		}))
}

// ReleaseReceipt releases every PASSED item that has no disposition yet.
// The receipt only becomes terminal once no item is left undispositioned.
// With nothing to release the items are kept and only the state is
// recomputed.
func (e *engineImpl) ReleaseReceipt(ctx context.Context, req api.ReasonRequest) (*api.ReceiptInstance, error) {
	m := receiptMutation("inbound.release", req.Actor, req.InstanceID,
		api.ActionReleaseInventory, transition.CanReleaseReceipt,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			items, n := transition.Release(r.SerializedItems)
			r.SerializedItems = items
			r.State = transition.NextStateOnRelease(r.State, items)
			if n == 0 {
				return "no passed items awaiting release", nil
			}
			if r.Released == nil {
				r.Released = api.NewStamp(req.Actor, now)
			}
			if req.Reason != "" {
				r.QcRemarks = req.Reason
			}
			return fmt.Sprintf("released %d items", n), nil
		})
	m.locks = []string{lockCellPool}
	return mutate(ctx, e, req, m)
}

// ScrapReceipt scraps every BLOCKED or FAILED item that has no disposition yet.
func (e *engineImpl) ScrapReceipt(ctx context.Context, req api.ReasonRequest) (*api.ReceiptInstance, error) {
	return mutate(ctx, e, req, receiptMutation("inbound.scrap", req.Actor, req.InstanceID,
		api.ActionScrapInventory, transition.CanScrapReceipt,
		func(r *api.ReceiptInstance, now time.Time) (string, error) {
			items, n := transition.Scrap(r.SerializedItems)
			r.SerializedItems = items
			r.State = transition.NextStateOnScrap(r.State, items)
			if n == 0 {
				return "no blocked or failed items awaiting scrap", nil
			}
			if r.Scrapped == nil {
				r.Scrapped = api.NewStamp(req.Actor, now)
			}
			if req.Reason != "" {
				r.ScrapReason = req.Reason
			}
			return fmt.Sprintf("scrapped %d items", n), nil
		}))
}

func (e *engineImpl) GetReceipt(ctx context.Context, instanceID string) (*api.ReceiptInstance, error) {
	r, err := getAs[*api.ReceiptInstance](ctx, e, api.FlowReceipt, instanceID)
	if err != nil {
		return nil, err
	}
	backfillSupplier(r)
	return r, nil
}

func (e *engineImpl) ListReceipts(ctx context.Context) ([]*api.ReceiptInstance, error) {
	receipts, err := list[*api.ReceiptInstance](ctx, e, api.FlowReceipt)
	if err != nil {
		return nil, err
	}
	for _, r := range receipts {
		backfillSupplier(r)
	}
	return receipts, nil
}

func backfillSupplier(r *api.ReceiptInstance) {
	if r.Draft.SupplierName == "" {
		r.Draft.SupplierName = legacySupplier
	}
}
