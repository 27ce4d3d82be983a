package guard

import "github.com/petrijr/packflow/pkg/api"

// ReasonUnknownAction is returned by every guard for an action it does not
// recognize.
const ReasonUnknownAction = "Unknown action"

const (
	reasonEngineering = "Requires Engineering Role"
	reasonManagement  = "Requires Management Role"
	reasonProcurement = "Requires Procurement Role"
	reasonStores      = "Requires Stores Role"
	reasonStoresOps   = "Requires Stores/Ops Role"
	reasonQA          = "Requires QA Role"
	reasonQASup       = "Requires QA/Sup Role"
	reasonSupervisor  = "Requires Supervisor Role"
	reasonPlanner     = "Requires Production Planner Role"
	reasonDirector    = "Requires Plant Director Role"
	reasonOperator    = "Requires Operator Role"
)

// rule is the role requirement of one action.
type rule struct {
	stage  api.Stage
	need   Capabilities
	reason string
}

var rules = map[api.ActionID]rule{
	api.ActionCreateSku:          {api.StageS1, CapEngineering, reasonEngineering},
	api.ActionSubmitSkuForReview: {api.StageS1, CapEngineering, reasonEngineering},
	api.ActionApproveSku:         {api.StageS1, CapManagement, reasonManagement},
	api.ActionRejectSku:          {api.StageS1, CapManagement, reasonManagement},
	api.ActionActivateSku:        {api.StageS1, CapManagement, reasonManagement},
	api.ActionRetireSku:          {api.StageS1, CapManagement, reasonManagement},

	api.ActionCreatePO:              {api.StageS2, CapProcurement, reasonProcurement},
	api.ActionSubmitPOForApproval:   {api.StageS2, CapProcurement, reasonProcurement},
	api.ActionApprovePO:             {api.StageS2, CapManagement, reasonManagement},
	api.ActionRejectPO:              {api.StageS2, CapManagement, reasonManagement},
	api.ActionAmendPO:               {api.StageS2, CapProcurement, reasonProcurement},
	api.ActionIssuePOToVendor:       {api.StageS2, CapProcurement, reasonProcurement},
	api.ActionCloseProcurementCycle: {api.StageS2, CapManagement, reasonManagement},

	api.ActionRecordReceipt:       {api.StageS3, CapStores | CapSupervisor, reasonStores},
	api.ActionVerifySerialization: {api.StageS3, CapStores | CapSupervisor | CapOperator, reasonStoresOps},
	api.ActionStartQC:             {api.StageS3, CapQA | CapSupervisor, reasonQA},
	api.ActionCompleteQC:          {api.StageS3, CapQA | CapSupervisor, reasonQA},
	api.ActionReleaseInventory:    {api.StageS3, CapStores | CapSupervisor, reasonStores},
	api.ActionBlockInventory:      {api.StageS3, CapQA | CapSupervisor, reasonQASup},
	api.ActionScrapInventory:      {api.StageS3, CapSupervisor, reasonSupervisor},

	api.ActionCreateBatchPlan:      {api.StageS4, CapPlanner, reasonPlanner},
	api.ActionEditBatchPlan:        {api.StageS4, CapPlanner, reasonPlanner},
	api.ActionLockBatchPlan:        {api.StageS4, CapManagement, reasonDirector},
	api.ActionReleaseBatchesToLine: {api.StageS4, CapManagement, reasonDirector},
	api.ActionCompleteBatch:        {api.StageS4, CapSupervisor | CapManagement, reasonSupervisor},
	api.ActionCancelBatch:          {api.StageS4, CapPlanner | CapManagement, reasonPlanner},

	api.ActionStartModuleAssembly: {api.StageS5, CapOperator | CapSupervisor, reasonOperator},
	api.ActionScanCells:           {api.StageS5, CapOperator | CapSupervisor, reasonOperator},
	api.ActionSerializeModule:     {api.StageS5, CapOperator | CapSupervisor, reasonOperator},
	api.ActionCompleteModule:      {api.StageS5, CapOperator | CapSupervisor, reasonOperator},
	api.ActionAcceptModuleQA:      {api.StageS5, CapQA, reasonQA},
}

func (r rule) check(caps Capabilities) api.ActionState {
	if !caps.Any(r.need) {
		return api.Deny(r.reason)
	}
	return api.Allow()
}

// Authorize checks only the role requirement of action, independent of
// any stage context or record status.
func Authorize(role api.Role, action api.ActionID) api.ActionState {
	r, ok := rules[action]
	if !ok {
		return api.Deny(ReasonUnknownAction)
	}
	return r.check(Resolve(role))
}

// StageOf returns the stage an action belongs to.
func StageOf(action api.ActionID) (api.Stage, bool) {
	r, ok := rules[action]
	return r.stage, ok
}

// Actions returns the actions of a stage in a stable order.
func Actions(stage api.Stage) []api.ActionID {
	var out []api.ActionID
	for _, a := range actionOrder {
		if rules[a].stage == stage {
			out = append(out, a)
		}
	}
	return out
}

var actionOrder = []api.ActionID{
	api.ActionCreateSku, api.ActionSubmitSkuForReview, api.ActionApproveSku,
	api.ActionRejectSku, api.ActionActivateSku, api.ActionRetireSku,

	api.ActionCreatePO, api.ActionSubmitPOForApproval, api.ActionApprovePO, api.ActionRejectPO,
	api.ActionAmendPO, api.ActionIssuePOToVendor, api.ActionCloseProcurementCycle,

	api.ActionRecordReceipt, api.ActionVerifySerialization, api.ActionStartQC, api.ActionCompleteQC,
	api.ActionReleaseInventory, api.ActionBlockInventory, api.ActionScrapInventory,

	api.ActionCreateBatchPlan, api.ActionEditBatchPlan, api.ActionLockBatchPlan,
	api.ActionReleaseBatchesToLine, api.ActionCompleteBatch, api.ActionCancelBatch,

	api.ActionStartModuleAssembly, api.ActionScanCells, api.ActionSerializeModule,
	api.ActionCompleteModule, api.ActionAcceptModuleQA,
}

// lookup returns the rule of action if it belongs to stage.
func lookup(stage api.Stage, action api.ActionID) (rule, bool) {
	r, ok := rules[action]
	if !ok || r.stage != stage {
		return rule{}, false
	}
	return r, true
}

// blocked reports whether a stage blocker applies to the holder of caps.
func blocked(dep api.Dependency, caps Capabilities) bool {
	return dep == api.DependencyBlocked && !caps.Overrides()
}
