package guard

import (
	"github.com/petrijr/packflow/internal/transition"
	"github.com/petrijr/packflow/pkg/api"
)

// Record guards check the role first, then the record's status. The status
// checks are the transition predicates, so a guard and its handler cannot
// disagree about which edges exist.

type statusCheck[S any] struct {
	allowed func(S) bool
	reason  string
}

func itemAction[S any](stage api.Stage, checks map[api.ActionID]statusCheck[S], role api.Role, status S, action api.ActionID) api.ActionState {
	r, ok := lookup(stage, action)
	c, known := checks[action]
	if !ok || !known {
		return api.Deny(ReasonUnknownAction)
	}
	if st := r.check(Resolve(role)); !st.Enabled {
		return st
	}
	if !c.allowed(status) {
		return api.Deny(c.reason)
	}
	return api.Allow()
}

var skuChecks = map[api.ActionID]statusCheck[api.SkuState]{
	api.ActionSubmitSkuForReview: {transition.CanSubmitSku, "SKU must be in Draft state"},
	api.ActionApproveSku:         {transition.CanApproveSku, "SKU must be in Review state"},
	api.ActionRejectSku:          {transition.CanRejectSku, "SKU must be in Review state"},
	api.ActionActivateSku:        {transition.CanActivateSku, "SKU must be Approved"},
	api.ActionRetireSku:          {transition.CanRetireSku, "Only Active SKUs can be retired"},
}

// SkuItemAction evaluates an action on one SKU blueprint.
func SkuItemAction(role api.Role, status api.SkuState, action api.ActionID) api.ActionState {
	return itemAction(api.StageS1, skuChecks, role, status, action)
}

var poChecks = map[api.ActionID]statusCheck[api.PurchaseOrderState]{
	api.ActionSubmitPOForApproval:   {transition.CanSubmitPO, "PO must be in Draft state"},
	api.ActionApprovePO:             {transition.CanApprovePO, "PO not pending approval"},
	api.ActionRejectPO:              {transition.CanRejectPO, "PO not pending approval"},
	api.ActionAmendPO:               {transition.CanAmendPO, "Only Approved POs can be amended"},
	api.ActionIssuePOToVendor:       {transition.CanIssuePO, "PO not approved"},
	api.ActionCloseProcurementCycle: {transition.CanClosePO, "PO not active/approved"},
}

// PurchaseOrderItemAction evaluates an action on one purchase order.
func PurchaseOrderItemAction(role api.Role, status api.PurchaseOrderState, action api.ActionID) api.ActionState {
	return itemAction(api.StageS2, poChecks, role, status, action)
}

var receiptChecks = map[api.ActionID]statusCheck[api.ReceiptState]{
	api.ActionVerifySerialization: {transition.CanSerializeReceipt, "Receipt must be in Received state"},
	api.ActionStartQC:             {transition.CanSubmitQc, "Receipt must be in Serialized state"},
	api.ActionCompleteQC:          {transition.CanCompleteQc, "QC Inspection not active"},
	api.ActionBlockInventory:      {transition.CanBlockReceipt, "Receipt must be in Disposition state"},
	api.ActionReleaseInventory:    {transition.CanReleaseReceipt, "Pending QC Disposition"},
	api.ActionScrapInventory:      {transition.CanScrapReceipt, "Pending QC Disposition"},
}

// ReceiptItemAction evaluates an action on one inbound receipt.
func ReceiptItemAction(role api.Role, status api.ReceiptState, action api.ActionID) api.ActionState {
	return itemAction(api.StageS3, receiptChecks, role, status, action)
}

var batchChecks = map[api.ActionID]statusCheck[api.BatchState]{
	api.ActionEditBatchPlan:        {transition.CanEditBatch, "Batch must be in Draft state"},
	api.ActionLockBatchPlan:        {transition.CanApproveBatch, "Batch must be in Draft state"},
	api.ActionReleaseBatchesToLine: {transition.CanStartBatch, "Batch must be Approved"},
	api.ActionCompleteBatch:        {transition.CanCompleteBatch, "Batch not in progress"},
	api.ActionCancelBatch:          {transition.CanCancelBatch, "Batch can no longer be cancelled"},
}

// BatchItemAction evaluates an action on one batch plan.
func BatchItemAction(role api.Role, status api.BatchState, action api.ActionID) api.ActionState {
	return itemAction(api.StageS4, batchChecks, role, status, action)
}

var moduleChecks = map[api.ActionID]statusCheck[api.ModuleState]{
	api.ActionScanCells:       {transition.CanScanModuleCells, "Module is not in assembly"},
	api.ActionSerializeModule: {transition.CanSerializeModule, "Module is not in assembly"},
	api.ActionCompleteModule:  {transition.CanCompleteModule, "Module is not in assembly"},
	api.ActionAcceptModuleQA:  {transition.CanAcceptModuleQa, "Module not pending QA"},
}

// ModuleItemAction evaluates an action on one module assembly.
func ModuleItemAction(role api.Role, status api.ModuleState, action api.ActionID) api.ActionState {
	return itemAction(api.StageS5, moduleChecks, role, status, action)
}
