package guard

import "github.com/petrijr/packflow/pkg/api"

// Stage blocker reasons.
const (
	ReasonSystemSetupNotReady = "System Setup Not Ready"
	ReasonBlueprintNotReady   = "S1 Blueprint Not Ready"
	ReasonProcurementBlocked  = "Procurement Dependency Blocked"
	ReasonInboundNotReady     = "Inbound Logistics (S3) Not Ready"
	ReasonNoBatchInProgress   = "No Batch In Progress"
)

// S1ActionState evaluates an SKU blueprint action.
func S1ActionState(role api.Role, ctx api.S1Context, action api.ActionID) api.ActionState {
	r, ok := lookup(api.StageS1, action)
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	caps := Resolve(role)
	if action == api.ActionCreateSku && blocked(ctx.SystemSetupDependency, caps) {
		return api.Deny(ReasonSystemSetupNotReady)
	}
	return r.check(caps)
}

// S2ActionState evaluates a procurement action. Only PO creation is
// decided here; actions on an existing PO are left to
// PurchaseOrderItemAction.
func S2ActionState(role api.Role, ctx api.S2Context, action api.ActionID) api.ActionState {
	r, ok := lookup(api.StageS2, action)
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	if action != api.ActionCreatePO {
		return api.Allow()
	}
	caps := Resolve(role)
	if blocked(ctx.BlueprintDependency, caps) {
		return api.Deny(ReasonBlueprintNotReady)
	}
	return r.check(caps)
}

// inboundSteps is the InboundStatus each S3 action requires.
var inboundSteps = map[api.ActionID]struct {
	status api.InboundStatus
	reason string
}{
	api.ActionRecordReceipt:       {api.InboundAwaitingReceipt, "Receipt already recorded"},
	api.ActionVerifySerialization: {api.InboundReceived, "Material not received"},
	api.ActionStartQC:             {api.InboundSerialized, "Serialization not verified"},
	api.ActionCompleteQC:          {api.InboundQCPending, "QC Inspection not active"},
	api.ActionReleaseInventory:    {api.InboundDisposition, "Pending QC Disposition"},
	api.ActionBlockInventory:      {api.InboundDisposition, "Pending QC Disposition"},
	api.ActionScrapInventory:      {api.InboundDisposition, "Pending QC Disposition"},
}

// S3ActionState evaluates an inbound action against the receipt in focus.
// The procurement blocker applies to every S3 action.
func S3ActionState(role api.Role, ctx api.S3Context, action api.ActionID) api.ActionState {
	r, ok := lookup(api.StageS3, action)
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	caps := Resolve(role)
	if blocked(ctx.ProcurementDependency, caps) {
		return api.Deny(ReasonProcurementBlocked)
	}
	if st := r.check(caps); !st.Enabled {
		return st
	}
	if step := inboundSteps[action]; ctx.InboundStatus != step.status {
		return api.Deny(step.reason)
	}
	return api.Allow()
}

// S4ActionState evaluates a batch planning action. Whether a specific
// batch may be edited or locked is decided by BatchItemAction.
func S4ActionState(role api.Role, ctx api.S4Context, action api.ActionID) api.ActionState {
	r, ok := lookup(api.StageS4, action)
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	caps := Resolve(role)
	switch action {
	case api.ActionCreateBatchPlan, api.ActionReleaseBatchesToLine:
		if blocked(ctx.InboundDependency, caps) {
			return api.Deny(ReasonInboundNotReady)
		}
	}
	return r.check(caps)
}

// S5ActionState evaluates a module assembly action.
func S5ActionState(role api.Role, ctx api.S5Context, action api.ActionID) api.ActionState {
	r, ok := lookup(api.StageS5, action)
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	caps := Resolve(role)
	if action == api.ActionStartModuleAssembly && blocked(ctx.BatchDependency, caps) {
		return api.Deny(ReasonNoBatchInProgress)
	}
	return r.check(caps)
}
