package api

// ActionState is the result of every guard: whether an action is currently
// permitted and, when it is not, a reason that can be shown to an operator.
type ActionState struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns an enabled ActionState.
func Allow() ActionState { return ActionState{Enabled: true} }

// Deny returns a disabled ActionState with the given reason.
func Deny(reason string) ActionState { return ActionState{Enabled: false, Reason: reason} }

// Stage identifies a plant workflow stage.
type Stage string

const (
	StageS1 Stage = "S1" // SKU blueprint
	StageS2 Stage = "S2" // procurement
	StageS3 Stage = "S3" // inbound receipt
	StageS4 Stage = "S4" // batch planning
	StageS5 Stage = "S5" // module assembly
)

// ActionID names an operator action evaluated by a guard.
type ActionID string

// S1 actions.
const (
	ActionCreateSku          ActionID = "CREATE_SKU"
	ActionSubmitSkuForReview ActionID = "SUBMIT_SKU_FOR_REVIEW"
	ActionApproveSku         ActionID = "APPROVE_SKU"
	ActionRejectSku          ActionID = "REJECT_SKU"
	ActionActivateSku        ActionID = "ACTIVATE_SKU"
	ActionRetireSku          ActionID = "RETIRE_SKU"
)

// S2 actions.
const (
	ActionCreatePO              ActionID = "CREATE_PO"
	ActionSubmitPOForApproval   ActionID = "SUBMIT_PO_FOR_APPROVAL"
	ActionApprovePO             ActionID = "APPROVE_PO"
	ActionRejectPO              ActionID = "REJECT_PO"
	ActionIssuePOToVendor       ActionID = "ISSUE_PO_TO_VENDOR"
	ActionCloseProcurementCycle ActionID = "CLOSE_PROCUREMENT_CYCLE"
	ActionAmendPO               ActionID = "AMEND_PO"
)

// S3 actions.
const (
	ActionRecordReceipt       ActionID = "RECORD_RECEIPT"
	ActionVerifySerialization ActionID = "VERIFY_SERIALIZATION"
	ActionStartQC             ActionID = "START_QC"
	ActionCompleteQC          ActionID = "COMPLETE_QC"
	ActionReleaseInventory    ActionID = "RELEASE_INVENTORY"
	ActionBlockInventory      ActionID = "BLOCK_INVENTORY"
	ActionScrapInventory      ActionID = "SCRAP_INVENTORY"
)

// S4 actions.
const (
	ActionCreateBatchPlan      ActionID = "CREATE_BATCH_PLAN"
	ActionEditBatchPlan        ActionID = "EDIT_BATCH_PLAN"
	ActionLockBatchPlan        ActionID = "LOCK_BATCH_PLAN"
	ActionReleaseBatchesToLine ActionID = "RELEASE_BATCHES_TO_LINE"
	ActionCompleteBatch        ActionID = "COMPLETE_BATCH"
	ActionCancelBatch          ActionID = "CANCEL_BATCH"
)

// S5 actions.
const (
	ActionStartModuleAssembly ActionID = "START_MODULE_ASSEMBLY"
	ActionScanCells           ActionID = "SCAN_CELLS"
	ActionSerializeModule     ActionID = "SERIALIZE_MODULE"
	ActionCompleteModule      ActionID = "COMPLETE_MODULE"
	ActionAcceptModuleQA      ActionID = "ACCEPT_MODULE_QA"
)

// Dependency is an upstream-readiness flag carried by stage contexts.
type Dependency string

const (
	DependencyOK      Dependency = "OK"
	DependencyBlocked Dependency = "BLOCKED"
)

// InboundStatus is the S3 view of the receipt in focus.
type InboundStatus string

const (
	InboundAwaitingReceipt InboundStatus = "AWAITING_RECEIPT"
	InboundReceived        InboundStatus = "RECEIVED"
	InboundSerialized      InboundStatus = "SERIALIZED"
	InboundQCPending       InboundStatus = "QC_PENDING"
	InboundDisposition     InboundStatus = "DISPOSITION"
	InboundCompleted       InboundStatus = "COMPLETED"
)

// S1Context summarizes SKU blueprint readiness.
type S1Context struct {
	DraftSkuCount         int        `json:"draftSkuCount"`
	ActiveSkuCount        int        `json:"activeSkuCount"`
	SystemSetupDependency Dependency `json:"systemSetupDependency"`
}

// S2Context summarizes procurement readiness.
type S2Context struct {
	ActivePoCount        int        `json:"activePoCount"`
	PendingApprovalCount int        `json:"pendingApprovalCount"`
	BlueprintDependency  Dependency `json:"blueprintDependency"`
}

// S3Context summarizes inbound logistics for the receipt in focus.
type S3Context struct {
	InboundShipmentCount            int           `json:"inboundShipmentCount"`
	LotsAwaitingInspectionCount     int           `json:"lotsAwaitingInspectionCount"`
	ItemsAwaitingSerializationCount int           `json:"itemsAwaitingSerializationCount"`
	SerializedItemsCount            int           `json:"serializedItemsCount"`
	InboundStatus                   InboundStatus `json:"inboundStatus"`
	ProcurementDependency           Dependency    `json:"procurementDependency"`
}

// S4Context summarizes batch planning readiness.
type S4Context struct {
	DraftBatchCount   int        `json:"draftBatchCount"`
	ActiveBatchCount  int        `json:"activeBatchCount"`
	ReleasedCellCount int        `json:"releasedCellCount"`
	InboundDependency Dependency `json:"inboundDependency"`
}

// S5Context summarizes module assembly readiness.
type S5Context struct {
	InProgressBatchCount int        `json:"inProgressBatchCount"`
	ModulesInAssembly    int        `json:"modulesInAssembly"`
	BatchDependency      Dependency `json:"batchDependency"`
}
