package api

// SkuState is the lifecycle state of a SKU blueprint (FLOW-001).
type SkuState string

const (
	SkuStateDraft    SkuState = "Draft"
	SkuStateReview   SkuState = "Review"
	SkuStateApproved SkuState = "Approved"
	SkuStateActive   SkuState = "Active"
	SkuStateObsolete SkuState = "Obsolete"
)

// SkuStates lists every SKU state.
var SkuStates = []SkuState{SkuStateDraft, SkuStateReview, SkuStateApproved, SkuStateActive, SkuStateObsolete}

func (s SkuState) Valid() bool { return contains(SkuStates, s) }

// PurchaseOrderState is the lifecycle state of a purchase order (FLOW-004).
type PurchaseOrderState string

const (
	PoStateDraft     PurchaseOrderState = "Draft"
	PoStateSubmitted PurchaseOrderState = "Submitted"
	PoStateApproved  PurchaseOrderState = "Approved"
	PoStateRejected  PurchaseOrderState = "Rejected"
	PoStateIssued    PurchaseOrderState = "Issued"
	PoStateClosed    PurchaseOrderState = "Closed"
)

var PurchaseOrderStates = []PurchaseOrderState{
	PoStateDraft, PoStateSubmitted, PoStateApproved, PoStateRejected, PoStateIssued, PoStateClosed,
}

func (s PurchaseOrderState) Valid() bool { return contains(PurchaseOrderStates, s) }

// ReceiptState is the aggregate state of an inbound receipt (FLOW-003).
type ReceiptState string

const (
	ReceiptStateReceived    ReceiptState = "Received"
	ReceiptStateSerialized  ReceiptState = "Serialized"
	ReceiptStateQCPending   ReceiptState = "QCPending"
	ReceiptStateDisposition ReceiptState = "Disposition"
	ReceiptStateBlocked     ReceiptState = "Blocked"
	ReceiptStateReleased    ReceiptState = "Released"
	ReceiptStateScrapped    ReceiptState = "Scrapped"
	ReceiptStateCompleted   ReceiptState = "Completed"
)

var ReceiptStates = []ReceiptState{
	ReceiptStateReceived, ReceiptStateSerialized, ReceiptStateQCPending, ReceiptStateDisposition,
	ReceiptStateBlocked, ReceiptStateReleased, ReceiptStateScrapped, ReceiptStateCompleted,
}

func (s ReceiptState) Valid() bool { return contains(ReceiptStates, s) }

// Terminal reports whether every item of a receipt in this state has been
// dispositioned.
func (s ReceiptState) Terminal() bool {
	return s == ReceiptStateReleased || s == ReceiptStateScrapped || s == ReceiptStateCompleted
}

// BatchState is the lifecycle state of a production batch (FLOW-002).
type BatchState string

const (
	BatchStateDraft      BatchState = "Draft"
	BatchStateApproved   BatchState = "Approved"
	BatchStateInProgress BatchState = "InProgress"
	BatchStateCompleted  BatchState = "Completed"
	BatchStateCancelled  BatchState = "Cancelled"
)

var BatchStates = []BatchState{
	BatchStateDraft, BatchStateApproved, BatchStateInProgress, BatchStateCompleted, BatchStateCancelled,
}

func (s BatchState) Valid() bool { return contains(BatchStates, s) }

// ModuleState is the lifecycle state of a module assembly (FLOW-006).
type ModuleState string

const (
	ModuleStateInAssembly ModuleState = "InAssembly"
	ModuleStatePendingQA  ModuleState = "PendingQA"
	ModuleStateCompleted  ModuleState = "Completed"
)

var ModuleStates = []ModuleState{ModuleStateInAssembly, ModuleStatePendingQA, ModuleStateCompleted}

func (s ModuleState) Valid() bool { return contains(ModuleStates, s) }

// ItemStatus is the QC status of a serialized item.
type ItemStatus string

const (
	ItemPendingQC ItemStatus = "PENDING_QC"
	ItemPassed    ItemStatus = "PASSED"
	ItemBlocked   ItemStatus = "BLOCKED"
	ItemFailed    ItemStatus = "FAILED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPendingQC, ItemPassed, ItemBlocked, ItemFailed:
		return true
	}
	return false
}

// Disposition is the terminal decision for a serialized item. The zero
// value means the item has not been dispositioned yet.
type Disposition string

const (
	DispositionNone     Disposition = ""
	DispositionReleased Disposition = "RELEASED"
	DispositionScrapped Disposition = "SCRAPPED"
)

// QcDecision is the lot-wide QC outcome.
type QcDecision string

const (
	QcPass QcDecision = "PASS"
	QcFail QcDecision = "FAIL"
)

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
