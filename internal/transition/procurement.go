package transition

import "github.com/petrijr/packflow/pkg/api"

func CanSubmitPO(s api.PurchaseOrderState) bool  { return s == api.PoStateDraft }
func CanApprovePO(s api.PurchaseOrderState) bool { return s == api.PoStateSubmitted }
func CanRejectPO(s api.PurchaseOrderState) bool  { return s == api.PoStateSubmitted }
func CanAmendPO(s api.PurchaseOrderState) bool   { return s == api.PoStateApproved }
func CanIssuePO(s api.PurchaseOrderState) bool   { return s == api.PoStateApproved }

// CanClosePO allows closing an approved PO that was never issued, as well
// as an issued one.
func CanClosePO(s api.PurchaseOrderState) bool {
	return s == api.PoStateApproved || s == api.PoStateIssued
}

func NextStateOnSubmitPO() api.PurchaseOrderState  { return api.PoStateSubmitted }
func NextStateOnApprovePO() api.PurchaseOrderState { return api.PoStateApproved }
func NextStateOnRejectPO() api.PurchaseOrderState  { return api.PoStateRejected }
func NextStateOnAmendPO() api.PurchaseOrderState   { return api.PoStateDraft }
func NextStateOnIssuePO() api.PurchaseOrderState   { return api.PoStateIssued }
func NextStateOnClosePO() api.PurchaseOrderState   { return api.PoStateClosed }
