package transition

import (
	"fmt"

	"github.com/petrijr/packflow/pkg/api"
)

func CanSerializeReceipt(s api.ReceiptState) bool { return s == api.ReceiptStateReceived }
func CanSubmitQc(s api.ReceiptState) bool         { return s == api.ReceiptStateSerialized }
func CanCompleteQc(s api.ReceiptState) bool       { return s == api.ReceiptStateQCPending }
func CanBlockReceipt(s api.ReceiptState) bool     { return s == api.ReceiptStateDisposition }

// Release and scrap are allowed while dispositioning, including when the
// receipt has been put on hold.
func CanReleaseReceipt(s api.ReceiptState) bool {
	return s == api.ReceiptStateDisposition || s == api.ReceiptStateBlocked
}

func CanScrapReceipt(s api.ReceiptState) bool {
	return s == api.ReceiptStateDisposition || s == api.ReceiptStateBlocked
}

func NextStateOnSerializeReceipt() api.ReceiptState { return api.ReceiptStateSerialized }
func NextStateOnSubmitQc() api.ReceiptState         { return api.ReceiptStateQCPending }
func NextStateOnCompleteQc() api.ReceiptState       { return api.ReceiptStateDisposition }
func NextStateOnBlockReceipt() api.ReceiptState     { return api.ReceiptStateBlocked }

// NextStateOnRelease and NextStateOnScrap take the items after the
// operation has been applied; the result is always recomputed from them.
// A receipt with undispositioned items keeps its current state, so a
// Blocked receipt stays Blocked until every item is dispositioned.
func NextStateOnRelease(current api.ReceiptState, items []api.SerializedItem) api.ReceiptState {
	return settle(current, items)
}

func NextStateOnScrap(current api.ReceiptState, items []api.SerializedItem) api.ReceiptState {
	return settle(current, items)
}

func settle(current api.ReceiptState, items []api.SerializedItem) api.ReceiptState {
	if s := AggregateState(items); s != api.ReceiptStateDisposition {
		return s
	}
	return current
}

// QcResult is the outcome of a QC inspection.
type QcResult struct {
	Decision api.QcDecision

	// ItemResults maps serial number to PASSED, BLOCKED or FAILED. Serials
	// that are absent fall back to Decision.
	ItemResults map[string]api.ItemStatus

	// PassQuantity marks the first N items PASSED and the rest BLOCKED. It
	// is only consulted when ItemResults is empty.
	PassQuantity *int
}

func lotStatus(d api.QcDecision) api.ItemStatus {
	if d == api.QcPass {
		return api.ItemPassed
	}
	return api.ItemBlocked
}

// ClassifyQc returns a copy of items with each QC status set from r. The
// input slice is not modified.
func ClassifyQc(items []api.SerializedItem, r QcResult) ([]api.SerializedItem, error) {
	out := make([]api.SerializedItem, len(items))
	copy(out, items)

	if len(r.ItemResults) > 0 {
		known := make(map[string]struct{}, len(out))
		for _, it := range out {
			known[it.SerialNumber] = struct{}{}
		}
		for serial, status := range r.ItemResults {
			if _, ok := known[serial]; !ok {
				return nil, fmt.Errorf("unknown serial %s", serial)
			}
			switch status {
			case api.ItemPassed, api.ItemBlocked, api.ItemFailed:
			default:
				return nil, fmt.Errorf("invalid QC status %q for %s", status, serial)
			}
		}
		for i := range out {
			if status, ok := r.ItemResults[out[i].SerialNumber]; ok {
				out[i].Status = status
			} else {
				out[i].Status = lotStatus(r.Decision)
			}
		}
		return out, nil
	}

	if r.PassQuantity != nil {
		n := *r.PassQuantity
		if n < 0 || n > len(out) {
			return nil, fmt.Errorf("pass quantity %d outside 0..%d", n, len(out))
		}
		for i := range out {
			if i < n {
				out[i].Status = api.ItemPassed
			} else {
				out[i].Status = api.ItemBlocked
			}
		}
		return out, nil
	}

	status := lotStatus(r.Decision)
	for i := range out {
		out[i].Status = status
	}
	return out, nil
}

// Release marks every PASSED item without a disposition as RELEASED and
// returns the new items together with the number of items changed.
func Release(items []api.SerializedItem) ([]api.SerializedItem, int) {
	return dispose(items, api.DispositionReleased, func(s api.ItemStatus) bool {
		return s == api.ItemPassed
	})
}

// Scrap marks every BLOCKED or FAILED item without a disposition as
// SCRAPPED and returns the new items together with the number changed.
func Scrap(items []api.SerializedItem) ([]api.SerializedItem, int) {
	return dispose(items, api.DispositionScrapped, func(s api.ItemStatus) bool {
		return s == api.ItemBlocked || s == api.ItemFailed
	})
}

func dispose(items []api.SerializedItem, d api.Disposition, eligible func(api.ItemStatus) bool) ([]api.SerializedItem, int) {
	out := make([]api.SerializedItem, len(items))
	copy(out, items)
	n := 0
	for i := range out {
		if out[i].Disposition == api.DispositionNone && eligible(out[i].Status) {
			out[i].Disposition = d
			n++
		}
	}
	return out, n
}

// AggregateState derives the receipt state from its items: Disposition
// while any item is undispositioned, otherwise Released, Scrapped or
// Completed for a mixed outcome. An empty item list stays in Disposition.
func AggregateState(items []api.SerializedItem) api.ReceiptState {
	if len(items) == 0 {
		return api.ReceiptStateDisposition
	}
	released, scrapped := 0, 0
	for _, it := range items {
		switch it.Disposition {
		case api.DispositionReleased:
			released++
		case api.DispositionScrapped:
			scrapped++
		default:
			return api.ReceiptStateDisposition
		}
	}
	switch {
	case released == len(items):
		return api.ReceiptStateReleased
	case scrapped == len(items):
		return api.ReceiptStateScrapped
	default:
		return api.ReceiptStateCompleted
	}
}

// Counts summarizes the QC and disposition spread of a receipt.
type Counts struct {
	Pending  int
	Passed   int
	Blocked  int
	Failed   int
	Released int
	Scrapped int
}

// CountItems tallies items by QC status and disposition.
func CountItems(items []api.SerializedItem) Counts {
	var c Counts
	for _, it := range items {
		switch it.Status {
		case api.ItemPendingQC:
			c.Pending++
		case api.ItemPassed:
			c.Passed++
		case api.ItemBlocked:
			c.Blocked++
		case api.ItemFailed:
			c.Failed++
		}
		switch it.Disposition {
		case api.DispositionReleased:
			c.Released++
		case api.DispositionScrapped:
			c.Scrapped++
		}
	}
	return c
}
