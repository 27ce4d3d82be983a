package api

import "context"

// Engine is the flow-instance engine. Every operation takes the acting role
// explicitly (inside the request), validates the request, applies one
// transition and persists the result. Errors are *Error values.
type Engine interface {
	// Get returns any instance by id.
	Get(ctx context.Context, instanceID string) (Instance, error)

	// List returns instances of one flow type, or of all types when flow is "".
	List(ctx context.Context, flow FlowID) ([]Instance, error)

	// Delete physically removes an instance. Administrative only.
	Delete(ctx context.Context, req InstanceRequest) error

	// History returns the audit events recorded for an instance, oldest first.
	History(ctx context.Context, instanceID string) ([]FlowEvent, error)

	// StoreVersion returns the global store version.
	StoreVersion(ctx context.Context) (StoreVersion, error)

	// Stage contexts derived from the current store contents. S3 is
	// computed for the receipt in focus; an empty id means no receipt yet.
	Stage1Context(ctx context.Context) (S1Context, error)
	Stage2Context(ctx context.Context) (S2Context, error)
	Stage3Context(ctx context.Context, receiptID string) (S3Context, error)
	Stage4Context(ctx context.Context) (S4Context, error)
	Stage5Context(ctx context.Context) (S5Context, error)

	SkuHandlers
	PurchaseOrderHandlers
	ReceiptHandlers
	BatchHandlers
	ModuleHandlers
}

// SkuHandlers operate on FLOW-001.
type SkuHandlers interface {
	CreateSku(ctx context.Context, req CreateSkuRequest) (*SkuInstance, error)
	SubmitSkuForReview(ctx context.Context, req InstanceRequest) (*SkuInstance, error)
	ApproveSku(ctx context.Context, req InstanceRequest) (*SkuInstance, error)
	RejectSku(ctx context.Context, req ReasonRequest) (*SkuInstance, error)
	ActivateSku(ctx context.Context, req InstanceRequest) (*SkuInstance, error)
	RetireSku(ctx context.Context, req InstanceRequest) (*SkuInstance, error)
	GetSku(ctx context.Context, instanceID string) (*SkuInstance, error)
	ListSkus(ctx context.Context) ([]*SkuInstance, error)
}

// PurchaseOrderHandlers operate on FLOW-004.
type PurchaseOrderHandlers interface {
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderInstance, error)
	SubmitPurchaseOrder(ctx context.Context, req InstanceRequest) (*PurchaseOrderInstance, error)
	ApprovePurchaseOrder(ctx context.Context, req InstanceRequest) (*PurchaseOrderInstance, error)
	RejectPurchaseOrder(ctx context.Context, req ReasonRequest) (*PurchaseOrderInstance, error)
	AmendPurchaseOrder(ctx context.Context, req AmendPurchaseOrderRequest) (*PurchaseOrderInstance, error)
	IssuePurchaseOrder(ctx context.Context, req InstanceRequest) (*PurchaseOrderInstance, error)
	ClosePurchaseOrder(ctx context.Context, req InstanceRequest) (*PurchaseOrderInstance, error)
	GetPurchaseOrder(ctx context.Context, instanceID string) (*PurchaseOrderInstance, error)
	ListPurchaseOrders(ctx context.Context) ([]*PurchaseOrderInstance, error)
}

// ReceiptHandlers operate on FLOW-003.
type ReceiptHandlers interface {
	CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*ReceiptInstance, error)
	SerializeReceipt(ctx context.Context, req SerializeReceiptRequest) (*ReceiptInstance, error)
	SubmitReceiptQc(ctx context.Context, req InstanceRequest) (*ReceiptInstance, error)
	CompleteReceiptQc(ctx context.Context, req CompleteQcRequest) (*ReceiptInstance, error)
	BlockReceipt(ctx context.Context, req ReasonRequest) (*ReceiptInstance, error)
	ReleaseReceipt(ctx context.Context, req ReasonRequest) (*ReceiptInstance, error)
	ScrapReceipt(ctx context.Context, req ReasonRequest) (*ReceiptInstance, error)
	GetReceipt(ctx context.Context, instanceID string) (*ReceiptInstance, error)
	ListReceipts(ctx context.Context) ([]*ReceiptInstance, error)
}

// BatchHandlers operate on FLOW-002.
type BatchHandlers interface {
	CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchInstance, error)
	UpdateBatchDraft(ctx context.Context, req UpdateBatchDraftRequest) (*BatchInstance, error)
	AllocateCells(ctx context.Context, req CellsRequest) (*BatchInstance, error)
	DeallocateCells(ctx context.Context, req CellsRequest) (*BatchInstance, error)
	BatchAllocation(ctx context.Context, instanceID string) (AllocationStatus, error)
	EligibleCells(ctx context.Context, instanceID string) ([]string, error)
	ApproveBatch(ctx context.Context, req InstanceRequest) (*BatchInstance, error)
	StartBatch(ctx context.Context, req InstanceRequest) (*BatchInstance, error)
	CompleteBatch(ctx context.Context, req InstanceRequest) (*BatchInstance, error)
	CancelBatch(ctx context.Context, req ReasonRequest) (*BatchInstance, error)
	GetBatch(ctx context.Context, instanceID string) (*BatchInstance, error)
	ListBatches(ctx context.Context) ([]*BatchInstance, error)
}

// ModuleHandlers operate on FLOW-006.
type ModuleHandlers interface {
	CreateModule(ctx context.Context, req CreateModuleRequest) (*ModuleInstance, error)
	AddModuleCells(ctx context.Context, req CellsRequest) (*ModuleInstance, error)
	RemoveModuleCells(ctx context.Context, req CellsRequest) (*ModuleInstance, error)
	SerializeModule(ctx context.Context, req InstanceRequest) (*ModuleInstance, error)
	CompleteModule(ctx context.Context, req InstanceRequest) (*ModuleInstance, error)
	AcceptModuleQa(ctx context.Context, req InstanceRequest) (*ModuleInstance, error)
	GetModule(ctx context.Context, instanceID string) (*ModuleInstance, error)
	ListModules(ctx context.Context) ([]*ModuleInstance, error)
}

// AllocationStatus is the reconciler view of a batch or module selection.
type AllocationStatus struct {
	Required  int  `json:"required"`
	Allocated int  `json:"allocated"`
	Remaining int  `json:"remaining"`
	Complete  bool `json:"complete"`
}
