package dispatch

import "github.com/petrijr/packflow/pkg/api"

func instanceActor(r *api.InstanceRequest) *api.Actor { return &r.Actor }
func reasonActor(r *api.ReasonRequest) *api.Actor     { return &r.Actor }
func cellsActor(r *api.CellsRequest) *api.Actor       { return &r.Actor }

func init() {
	for _, f := range api.AllFlows {
		register(f, "delete", deleteHandler)
	}

	register(api.FlowSku, "create", bind(func(r *api.CreateSkuRequest) *api.Actor { return &r.Actor }, api.Engine.CreateSku))
	register(api.FlowSku, "submit", bind(instanceActor, api.Engine.SubmitSkuForReview))
	register(api.FlowSku, "approve", bind(instanceActor, api.Engine.ApproveSku))
	register(api.FlowSku, "reject", bind(reasonActor, api.Engine.RejectSku))
	register(api.FlowSku, "activate", bind(instanceActor, api.Engine.ActivateSku))
	register(api.FlowSku, "retire", bind(instanceActor, api.Engine.RetireSku))

	register(api.FlowPurchaseOrder, "create", bind(func(r *api.CreatePurchaseOrderRequest) *api.Actor { return &r.Actor }, api.Engine.CreatePurchaseOrder))
	register(api.FlowPurchaseOrder, "submit", bind(instanceActor, api.Engine.SubmitPurchaseOrder))
	register(api.FlowPurchaseOrder, "approve", bind(instanceActor, api.Engine.ApprovePurchaseOrder))
	register(api.FlowPurchaseOrder, "reject", bind(reasonActor, api.Engine.RejectPurchaseOrder))
	register(api.FlowPurchaseOrder, "amend", bind(func(r *api.AmendPurchaseOrderRequest) *api.Actor { return &r.Actor }, api.Engine.AmendPurchaseOrder))
	register(api.FlowPurchaseOrder, "issue", bind(instanceActor, api.Engine.IssuePurchaseOrder))
	register(api.FlowPurchaseOrder, "close", bind(instanceActor, api.Engine.ClosePurchaseOrder))

	register(api.FlowReceipt, "create", bind(func(r *api.CreateReceiptRequest) *api.Actor { return &r.Actor }, api.Engine.CreateReceipt))
	register(api.FlowReceipt, "serialize", bind(func(r *api.SerializeReceiptRequest) *api.Actor { return &r.Actor }, api.Engine.SerializeReceipt))
	register(api.FlowReceipt, "submit_qc", bind(instanceActor, api.Engine.SubmitReceiptQc))
	register(api.FlowReceipt, "complete_qc", bind(func(r *api.CompleteQcRequest) *api.Actor { return &r.Actor }, api.Engine.CompleteReceiptQc))
	register(api.FlowReceipt, "block", bind(reasonActor, api.Engine.BlockReceipt))
	register(api.FlowReceipt, "release", bind(reasonActor, api.Engine.ReleaseReceipt))
	register(api.FlowReceipt, "scrap", bind(reasonActor, api.Engine.ScrapReceipt))

	register(api.FlowBatch, "create", bind(func(r *api.CreateBatchRequest) *api.Actor { return &r.Actor }, api.Engine.CreateBatch))
	register(api.FlowBatch, "update_draft", bind(func(r *api.UpdateBatchDraftRequest) *api.Actor { return &r.Actor }, api.Engine.UpdateBatchDraft))
	register(api.FlowBatch, "allocate", bind(cellsActor, api.Engine.AllocateCells))
	register(api.FlowBatch, "deallocate", bind(cellsActor, api.Engine.DeallocateCells))
	register(api.FlowBatch, "approve", bind(instanceActor, api.Engine.ApproveBatch))
	register(api.FlowBatch, "start", bind(instanceActor, api.Engine.StartBatch))
	register(api.FlowBatch, "complete", bind(instanceActor, api.Engine.CompleteBatch))
	register(api.FlowBatch, "cancel", bind(reasonActor, api.Engine.CancelBatch))

	register(api.FlowModule, "create", bind(func(r *api.CreateModuleRequest) *api.Actor { return &r.Actor }, api.Engine.CreateModule))
	register(api.FlowModule, "add_cells", bind(cellsActor, api.Engine.AddModuleCells))
	register(api.FlowModule, "remove_cells", bind(cellsActor, api.Engine.RemoveModuleCells))
	register(api.FlowModule, "serialize", bind(instanceActor, api.Engine.SerializeModule))
	register(api.FlowModule, "complete", bind(instanceActor, api.Engine.CompleteModule))
	register(api.FlowModule, "accept_qa", bind(instanceActor, api.Engine.AcceptModuleQa))
}
