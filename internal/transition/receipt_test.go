package transition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/pkg/api"
)

func pendingItems(n int) []api.SerializedItem {
	items := make([]api.SerializedItem, n)
	for i := range items {
		items[i] = api.SerializedItem{
			SerialNumber: fmt.Sprintf("CELL-%04d", i+1),
			Status:       api.ItemPendingQC,
		}
	}
	return items
}

func intPtr(n int) *int { return &n }

func TestClassifyQc_ItemResultsTakePriority(t *testing.T) {
	items := pendingItems(4)

	out, err := ClassifyQc(items, QcResult{
		Decision: api.QcPass,
		ItemResults: map[string]api.ItemStatus{
			"CELL-0002": api.ItemFailed,
			"CELL-0003": api.ItemBlocked,
		},
		PassQuantity: intPtr(0),
	})
	require.NoError(t, err)

	assert.Equal(t, api.ItemPassed, out[0].Status)
	assert.Equal(t, api.ItemFailed, out[1].Status)
	assert.Equal(t, api.ItemBlocked, out[2].Status)
	assert.Equal(t, api.ItemPassed, out[3].Status, "missing serial falls back to lot decision")

	// input untouched
	assert.Equal(t, api.ItemPendingQC, items[0].Status)
}

func TestClassifyQc_MissingSerialsFallBackToFailedLot(t *testing.T) {
	out, err := ClassifyQc(pendingItems(2), QcResult{
		Decision:    api.QcFail,
		ItemResults: map[string]api.ItemStatus{"CELL-0001": api.ItemPassed},
	})
	require.NoError(t, err)
	assert.Equal(t, api.ItemPassed, out[0].Status)
	assert.Equal(t, api.ItemBlocked, out[1].Status)
}

func TestClassifyQc_RejectsUnknownSerial(t *testing.T) {
	_, err := ClassifyQc(pendingItems(2), QcResult{
		Decision:    api.QcPass,
		ItemResults: map[string]api.ItemStatus{"CELL-9999": api.ItemPassed},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CELL-9999")
}

func TestClassifyQc_RejectsPendingStatus(t *testing.T) {
	_, err := ClassifyQc(pendingItems(1), QcResult{
		Decision:    api.QcPass,
		ItemResults: map[string]api.ItemStatus{"CELL-0001": api.ItemPendingQC},
	})
	require.Error(t, err)
}

func TestClassifyQc_PassQuantity(t *testing.T) {
	out, err := ClassifyQc(pendingItems(5), QcResult{Decision: api.QcPass, PassQuantity: intPtr(3)})
	require.NoError(t, err)

	c := CountItems(out)
	assert.Equal(t, 3, c.Passed)
	assert.Equal(t, 2, c.Blocked)
	assert.Equal(t, api.ItemPassed, out[2].Status)
	assert.Equal(t, api.ItemBlocked, out[3].Status)

	_, err = ClassifyQc(pendingItems(5), QcResult{Decision: api.QcPass, PassQuantity: intPtr(6)})
	require.Error(t, err)
}

func TestClassifyQc_LotDecision(t *testing.T) {
	out, err := ClassifyQc(pendingItems(3), QcResult{Decision: api.QcFail})
	require.NoError(t, err)
	assert.Equal(t, 3, CountItems(out).Blocked)

	out, err = ClassifyQc(pendingItems(3), QcResult{Decision: api.QcPass})
	require.NoError(t, err)
	assert.Equal(t, 3, CountItems(out).Passed)
}

func TestReleaseAndScrap_DoNotOverwriteDisposition(t *testing.T) {
	items := []api.SerializedItem{
		{SerialNumber: "A", Status: api.ItemPassed, Disposition: api.DispositionScrapped},
		{SerialNumber: "B", Status: api.ItemPassed},
		{SerialNumber: "C", Status: api.ItemFailed, Disposition: api.DispositionReleased},
		{SerialNumber: "D", Status: api.ItemFailed},
	}

	released, n := Release(items)
	assert.Equal(t, 1, n)
	assert.Equal(t, api.DispositionScrapped, released[0].Disposition)
	assert.Equal(t, api.DispositionReleased, released[1].Disposition)
	assert.Equal(t, api.DispositionNone, released[3].Disposition)

	scrapped, n := Scrap(released)
	assert.Equal(t, 1, n)
	assert.Equal(t, api.DispositionReleased, scrapped[2].Disposition)
	assert.Equal(t, api.DispositionScrapped, scrapped[3].Disposition)

	// second application is a no-op
	_, n = Release(scrapped)
	assert.Zero(t, n)
}

func TestAggregateState(t *testing.T) {
	tests := []struct {
		name string
		disp []api.Disposition
		want api.ReceiptState
	}{
		{"empty", nil, api.ReceiptStateDisposition},
		{"pending", []api.Disposition{api.DispositionReleased, api.DispositionNone}, api.ReceiptStateDisposition},
		{"all released", []api.Disposition{api.DispositionReleased, api.DispositionReleased}, api.ReceiptStateReleased},
		{"all scrapped", []api.Disposition{api.DispositionScrapped}, api.ReceiptStateScrapped},
		{"mixed", []api.Disposition{api.DispositionReleased, api.DispositionScrapped}, api.ReceiptStateCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]api.SerializedItem, len(tt.disp))
			for i, d := range tt.disp {
				items[i].Disposition = d
			}
			assert.Equal(t, tt.want, AggregateState(items))
			assert.Equal(t, AggregateState(items), AggregateState(items))
		})
	}
}

func TestDispositionRoundTrip(t *testing.T) {
	for _, tc := range []struct{ passed, blocked int }{{100, 0}, {0, 100}, {80, 20}, {1, 1}} {
		t.Run(fmt.Sprintf("P%d_F%d", tc.passed, tc.blocked), func(t *testing.T) {
			n := tc.passed + tc.blocked
			items, err := ClassifyQc(pendingItems(n), QcResult{Decision: api.QcPass, PassQuantity: intPtr(tc.passed)})
			require.NoError(t, err)

			items, released := Release(items)
			assert.Equal(t, tc.passed, released)
			if tc.blocked > 0 {
				assert.Equal(t, api.ReceiptStateDisposition, NextStateOnRelease(api.ReceiptStateDisposition, items))
			}

			items, scrapped := Scrap(items)
			assert.Equal(t, tc.blocked, scrapped)

			want := api.ReceiptStateCompleted
			switch {
			case tc.blocked == 0:
				want = api.ReceiptStateReleased
			case tc.passed == 0:
				want = api.ReceiptStateScrapped
			}
			assert.Equal(t, want, NextStateOnScrap(api.ReceiptStateDisposition, items))

			c := CountItems(items)
			assert.Equal(t, tc.passed, c.Released)
			assert.Equal(t, tc.blocked, c.Scrapped)
		})
	}
}

func TestNextStateOnRelease_KeepsBlockedWhilePending(t *testing.T) {
	items, err := ClassifyQc(pendingItems(2), QcResult{Decision: api.QcFail})
	require.NoError(t, err)

	items, released := Release(items)
	assert.Zero(t, released)
	assert.Equal(t, api.ReceiptStateBlocked, NextStateOnRelease(api.ReceiptStateBlocked, items))

	items, _ = Scrap(items)
	assert.Equal(t, api.ReceiptStateScrapped, NextStateOnScrap(api.ReceiptStateBlocked, items))
}
