// Package wizard derives the operator-facing wizard step from an instance.
// Steps are a view of state: they are never stored and every resolver is a
// total function with an explicit default.
package wizard

import "github.com/petrijr/packflow/pkg/api"

// Step identifies a wizard screen.
type Step string

// Receipt steps.
const (
	StepReceipt       Step = "RECEIPT"
	StepSerialization Step = "SERIALIZATION"
	StepQC            Step = "QC"
	StepDisposition   Step = "DISPOSITION"
)

// Batch and purchase order steps.
const (
	StepDraft       Step = "DRAFT"
	StepExecution   Step = "EXECUTION"
	StepCompletion  Step = "COMPLETION"
	StepApproval    Step = "APPROVAL"
	StepFulfillment Step = "FULFILLMENT"
)

// Module steps. Modules share StepSerialization and StepCompletion.
const (
	StepBatchSelect Step = "BATCH_SELECT"
	StepAggregation Step = "AGGREGATION"
	StepSummary     Step = "SUMMARY"
)

// SKU steps.
const (
	StepDefinition Step = "DEFINITION"
	StepReview     Step = "REVIEW"
	StepRelease    Step = "RELEASE"
)

// Resolve dispatches on the concrete instance type. A nil interface has no
// flow and resolves to "".
func Resolve(inst api.Instance) Step {
	switch v := inst.(type) {
	case *api.SkuInstance:
		if v == nil {
			return StepDefinition
		}
		return SkuStep(v.State)
	case *api.PurchaseOrderInstance:
		if v == nil {
			return StepDraft
		}
		return PurchaseOrderStep(v.State)
	case *api.ReceiptInstance:
		if v == nil {
			return StepReceipt
		}
		return ReceiptStep(v.State)
	case *api.BatchInstance:
		if v == nil {
			return StepDraft
		}
		return BatchStep(v.State)
	case *api.ModuleInstance:
		return ModuleStep(v)
	}
	return ""
}

// ReceiptStep maps an inbound receipt state. A Received receipt has already
// been recorded, so it opens on serialization.
func ReceiptStep(s api.ReceiptState) Step {
	switch s {
	case api.ReceiptStateReceived, api.ReceiptStateSerialized:
		return StepSerialization
	case api.ReceiptStateQCPending:
		return StepQC
	case api.ReceiptStateDisposition, api.ReceiptStateBlocked,
		api.ReceiptStateReleased, api.ReceiptStateScrapped, api.ReceiptStateCompleted:
		return StepDisposition
	default:
		return StepReceipt
	}
}

func BatchStep(s api.BatchState) Step {
	switch s {
	case api.BatchStateApproved, api.BatchStateInProgress:
		return StepExecution
	case api.BatchStateCompleted, api.BatchStateCancelled:
		return StepCompletion
	default:
		return StepDraft
	}
}

// ModuleStep also looks at the draft: an assembly in progress moves from
// cell aggregation to serialization to the summary.
func ModuleStep(m *api.ModuleInstance) Step {
	if m == nil {
		return StepBatchSelect
	}
	switch m.State {
	case api.ModuleStateInAssembly:
		switch {
		case len(m.Draft.CellSerials) == 0:
			return StepAggregation
		case m.Draft.ModuleSerial == "":
			return StepSerialization
		default:
			return StepSummary
		}
	case api.ModuleStatePendingQA, api.ModuleStateCompleted:
		return StepCompletion
	default:
		return StepBatchSelect
	}
}

func SkuStep(s api.SkuState) Step {
	switch s {
	case api.SkuStateReview:
		return StepReview
	case api.SkuStateApproved, api.SkuStateActive, api.SkuStateObsolete:
		return StepRelease
	default:
		return StepDefinition
	}
}

func PurchaseOrderStep(s api.PurchaseOrderState) Step {
	switch s {
	case api.PoStateSubmitted, api.PoStateRejected:
		return StepApproval
	case api.PoStateApproved, api.PoStateIssued, api.PoStateClosed:
		return StepFulfillment
	default:
		return StepDraft
	}
}
