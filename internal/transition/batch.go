package transition

import "github.com/petrijr/packflow/pkg/api"

// Plan edits and cell allocation are only possible while the plan is a draft.
func CanEditBatch(s api.BatchState) bool     { return s == api.BatchStateDraft }
func CanAllocateCells(s api.BatchState) bool { return s == api.BatchStateDraft }

func CanApproveBatch(s api.BatchState) bool  { return s == api.BatchStateDraft }
func CanStartBatch(s api.BatchState) bool    { return s == api.BatchStateApproved }
func CanCompleteBatch(s api.BatchState) bool { return s == api.BatchStateInProgress }
func CanCancelBatch(s api.BatchState) bool {
	return s == api.BatchStateDraft || s == api.BatchStateApproved
}

func NextStateOnApproveBatch() api.BatchState  { return api.BatchStateApproved }
func NextStateOnStartBatch() api.BatchState    { return api.BatchStateInProgress }
func NextStateOnCompleteBatch() api.BatchState { return api.BatchStateCompleted }
func NextStateOnCancelBatch() api.BatchState   { return api.BatchStateCancelled }

// HoldsCells reports whether a batch in state s keeps its allocated cells
// out of the shared pool.
func HoldsCells(s api.BatchState) bool { return s != api.BatchStateCancelled }
