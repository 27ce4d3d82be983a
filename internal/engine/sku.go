package engine

import (
	"context"
	"time"

	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

func (e *engineImpl) CreateSku(ctx context.Context, req api.CreateSkuRequest) (*api.SkuInstance, error) {
	return create(ctx, e, req, creation[*api.SkuInstance]{
		call:   call{op: "sku.create", flow: api.FlowSku, actor: req.Actor},
		action: api.ActionCreateSku,
		prefix: "SKU",
		locks:  []string{lockSkuCatalog},
		build: func(now time.Time) (*api.SkuInstance, error) {
			existing, err := e.findSku(ctx, req.Draft.SkuCode)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, api.BadRequest("SKU Code %s already exists", req.Draft.SkuCode)
			}
			return &api.SkuInstance{State: api.SkuStateDraft, Draft: req.Draft}, nil
		},
	})
}

// skuMutation locks the SKU catalog alongside the instance, so batch
// approval sees a settled SKU state.
func skuMutation(op string, req api.InstanceRequest, action api.ActionID, can func(api.SkuState) bool, apply func(*api.SkuInstance, time.Time)) mutation[*api.SkuInstance] {
	return mutation[*api.SkuInstance]{
		call:  call{op: op, flow: api.FlowSku, actor: req.Actor},
		id:    req.InstanceID,
		locks: []string{lockSkuCatalog},
		apply: func(s *api.SkuInstance, now time.Time) (string, error) {
			if err := gate(s.State, can, guard.SkuItemAction, req.Actor, action); err != nil {
				return "", err
			}
			apply(s, now)
			return "", nil
		},
	}
}

func (e *engineImpl) SubmitSkuForReview(ctx context.Context, req api.InstanceRequest) (*api.SkuInstance, error) {
	return mutate(ctx, e, req, skuMutation("sku.submit", req, api.ActionSubmitSkuForReview, transition.CanSubmitSku,
		func(s *api.SkuInstance, now time.Time) {
			s.State = transition.NextStateOnSubmitSku()
			s.Submissions = append(s.Submissions, *api.NewStamp(req.Actor, now))
		}))
}

func (e *engineImpl) ApproveSku(ctx context.Context, req api.InstanceRequest) (*api.SkuInstance, error) {
	return mutate(ctx, e, req, skuMutation("sku.approve", req, api.ActionApproveSku, transition.CanApproveSku,
		func(s *api.SkuInstance, now time.Time) {
			s.State = transition.NextStateOnApproveSku()
			s.Approved = api.NewStamp(req.Actor, now)
			s.RejectionReason = ""
		}))
}

func (e *engineImpl) RejectSku(ctx context.Context, req api.ReasonRequest) (*api.SkuInstance, error) {
	ir := api.InstanceRequest{Actor: req.Actor, InstanceID: req.InstanceID}
	return mutate(ctx, e, req, skuMutation("sku.reject", ir, api.ActionRejectSku, transition.CanRejectSku,
		func(s *api.SkuInstance, now time.Time) {
			s.State = transition.NextStateOnRejectSku()
			s.Rejections = append(s.Rejections, *api.NewStamp(req.Actor, now))
			s.RejectionReason = req.Reason
		}))
}

func (e *engineImpl) ActivateSku(ctx context.Context, req api.InstanceRequest) (*api.SkuInstance, error) {
	return mutate(ctx, e, req, skuMutation("sku.activate", req, api.ActionActivateSku, transition.CanActivateSku,
		func(s *api.SkuInstance, now time.Time) {
			s.State = transition.NextStateOnActivateSku()
			s.Activated = api.NewStamp(req.Actor, now)
		}))
}

func (e *engineImpl) RetireSku(ctx context.Context, req api.InstanceRequest) (*api.SkuInstance, error) {
	return mutate(ctx, e, req, skuMutation("sku.retire", req, api.ActionRetireSku, transition.CanRetireSku,
		func(s *api.SkuInstance, now time.Time) {
			s.State = transition.NextStateOnRetireSku()
			s.Retired = api.NewStamp(req.Actor, now)
		}))
}

func (e *engineImpl) GetSku(ctx context.Context, instanceID string) (*api.SkuInstance, error) {
	return getAs[*api.SkuInstance](ctx, e, api.FlowSku, instanceID)
}

func (e *engineImpl) ListSkus(ctx context.Context) ([]*api.SkuInstance, error) {
	return list[*api.SkuInstance](ctx, e, api.FlowSku)
}

// findSku returns the SKU with the given code, or nil. Obsolete SKUs are
// only returned when no other SKU carries the code.
func (e *engineImpl) findSku(ctx context.Context, code string) (*api.SkuInstance, error) {
	skus, err := list[*api.SkuInstance](ctx, e, api.FlowSku)
	if err != nil {
		return nil, err
	}
	var found *api.SkuInstance
	for _, s := range skus {
		if s.Draft.SkuCode != code {
			continue
		}
		if found == nil || found.State == api.SkuStateObsolete {
			found = s
		}
	}
	return found, nil
}
