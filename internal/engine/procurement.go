package engine

import (
	"context"
	"time"

	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

func (e *engineImpl) CreatePurchaseOrder(ctx context.Context, req api.CreatePurchaseOrderRequest) (*api.PurchaseOrderInstance, error) {
	return create(ctx, e, req, creation[*api.PurchaseOrderInstance]{
		call:   call{op: "procurement.create", flow: api.FlowPurchaseOrder, actor: req.Actor},
		action: api.ActionCreatePO,
		prefix: "PO",
		locks:  []string{lockPoCatalog},
		build: func(now time.Time) (*api.PurchaseOrderInstance, error) {
			if err := e.uniquePONumber(ctx, req.Draft.PONumber, ""); err != nil {
				return nil, err
			}
			return &api.PurchaseOrderInstance{State: api.PoStateDraft, Draft: req.Draft}, nil
		},
	})
}

func poMutation(op string, actor api.Actor, id string, action api.ActionID, can func(api.PurchaseOrderState) bool, apply func(*api.PurchaseOrderInstance, time.Time) error) mutation[*api.PurchaseOrderInstance] {
	return mutation[*api.PurchaseOrderInstance]{
		call:  call{op: op, flow: api.FlowPurchaseOrder, actor: actor},
		id:    id,
		locks: []string{lockPoCatalog},
		apply: func(p *api.PurchaseOrderInstance, now time.Time) (string, error) {
			if err := gate(p.State, can, guard.PurchaseOrderItemAction, actor, action); err != nil {
				return "", err
			}
			return "", apply(p, now)
		},
	}
}

func (e *engineImpl) SubmitPurchaseOrder(ctx context.Context, req api.InstanceRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.submit", req.Actor, req.InstanceID,
		api.ActionSubmitPOForApproval, transition.CanSubmitPO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			p.State = transition.NextStateOnSubmitPO()
			p.Submissions = append(p.Submissions, *api.NewStamp(req.Actor, now))
			return nil
		}))
}

func (e *engineImpl) ApprovePurchaseOrder(ctx context.Context, req api.InstanceRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.approve", req.Actor, req.InstanceID,
		api.ActionApprovePO, transition.CanApprovePO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			p.State = transition.NextStateOnApprovePO()
			p.Approvals = append(p.Approvals, *api.NewStamp(req.Actor, now))
			return nil
		}))
}

func (e *engineImpl) RejectPurchaseOrder(ctx context.Context, req api.ReasonRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.reject", req.Actor, req.InstanceID,
		api.ActionRejectPO, transition.CanRejectPO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			p.State = transition.NextStateOnRejectPO()
			p.Rejected = api.NewStamp(req.Actor, now)
			p.RejectionReason = req.Reason
			return nil
		}))
}

// AmendPurchaseOrder returns an approved PO to Draft. The previous
// approvals stay on record; the PO has to be submitted and approved again.
func (e *engineImpl) AmendPurchaseOrder(ctx context.Context, req api.AmendPurchaseOrderRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.amend", req.Actor, req.InstanceID,
		api.ActionAmendPO, transition.CanAmendPO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			if req.Draft != nil {
				if err := e.uniquePONumber(ctx, req.Draft.PONumber, p.InstanceID); err != nil {
					return err
				}
				p.Draft = *req.Draft
			}
			p.State = transition.NextStateOnAmendPO()
			p.Amendments = append(p.Amendments, *api.NewStamp(req.Actor, now))
			return nil
		}))
}

func (e *engineImpl) IssuePurchaseOrder(ctx context.Context, req api.InstanceRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.issue", req.Actor, req.InstanceID,
		api.ActionIssuePOToVendor, transition.CanIssuePO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			p.State = transition.NextStateOnIssuePO()
			p.Issued = api.NewStamp(req.Actor, now)
			return nil
		}))
}

func (e *engineImpl) ClosePurchaseOrder(ctx context.Context, req api.InstanceRequest) (*api.PurchaseOrderInstance, error) {
	return mutate(ctx, e, req, poMutation("procurement.close", req.Actor, req.InstanceID,
		api.ActionCloseProcurementCycle, transition.CanClosePO,
		func(p *api.PurchaseOrderInstance, now time.Time) error {
			p.State = transition.NextStateOnClosePO()
			p.Closed = api.NewStamp(req.Actor, now)
			return nil
		}))
}

func (e *engineImpl) GetPurchaseOrder(ctx context.Context, instanceID string) (*api.PurchaseOrderInstance, error) {
	return getAs[*api.PurchaseOrderInstance](ctx, e, api.FlowPurchaseOrder, instanceID)
}

func (e *engineImpl) ListPurchaseOrders(ctx context.Context) ([]*api.PurchaseOrderInstance, error) {
	return list[*api.PurchaseOrderInstance](ctx, e, api.FlowPurchaseOrder)
}

// uniquePONumber rejects a PO number already used by another order.
func (e *engineImpl) uniquePONumber(ctx context.Context, number, self string) error {
	pos, err := list[*api.PurchaseOrderInstance](ctx, e, api.FlowPurchaseOrder)
	if err != nil {
		return err
	}
	for _, p := range pos {
		if p.InstanceID != self && p.Draft.PONumber == number {
			return api.BadRequest("PO Number %s already exists", number)
		}
	}
	return nil
}
