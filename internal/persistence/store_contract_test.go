package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/petrijr/packflow/pkg/api"
)

// FlowStoreSuite is run against every FlowStore implementation. open must
// return an empty store for each test.
type FlowStoreSuite struct {
	suite.Suite
	open  func(t *testing.T) FlowStore
	store FlowStore
	ctx   context.Context
}

func runFlowStoreSuite(t *testing.T, open func(t *testing.T) FlowStore) {
	suite.Run(t, &FlowStoreSuite{open: open})
}

func (s *FlowStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func testBatch(id string, rev int64, created time.Time) *api.BatchInstance {
	return &api.BatchInstance{
		Envelope: api.Envelope{
			FlowID:     api.FlowBatch,
			InstanceID: id,
			CreatedAt:  created,
			UpdatedAt:  created.Add(time.Duration(rev) * time.Minute),
			Revision:   rev,
		},
		State: api.BatchStateDraft,
		Draft: api.BatchDraft{
			BatchName:       "Batch " + id,
			SkuCode:         "BP-LFP-48V-2.5K",
			PlannedQuantity: 3,
			AllocatedCells:  []string{"CELL-LFP-0001", "CELL-LFP-0002"},
		},
	}
}

func testReceipt(id string, rev int64, created time.Time) *api.ReceiptInstance {
	return &api.ReceiptInstance{
		Envelope: api.Envelope{
			FlowID:     api.FlowReceipt,
			InstanceID: id,
			CreatedAt:  created,
			UpdatedAt:  created,
			Revision:   rev,
		},
		State: api.ReceiptStateSerialized,
		Draft: api.ReceiptDraft{GRNNumber: "GRN-" + id, SupplierName: "Cells Ltd", QuantityReceived: 2},
		SerializedItems: []api.SerializedItem{
			{SerialNumber: "CELL-1", Status: api.ItemPendingQC},
			{SerialNumber: "CELL-2", Status: api.ItemPendingQC},
		},
	}
}

func (s *FlowStoreSuite) TestGet_Missing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.ErrorIs(err, ErrInstanceNotFound)
}

func (s *FlowStoreSuite) TestUpsert_CreateAndGet() {
	b := testBatch("B-1", 1, baseTime)
	s.Require().NoError(s.store.Upsert(s.ctx, b))

	got, err := s.store.Get(s.ctx, "B-1")
	s.Require().NoError(err)
	s.Equal(b, got)
}

func (s *FlowStoreSuite) TestUpsert_CreateTwiceConflicts() {
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime)))

	err := s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime))
	s.ErrorIs(err, ErrVersionConflict)
}

func (s *FlowStoreSuite) TestUpsert_RevisionChecks() {
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime)))

	next := testBatch("B-1", 2, baseTime)
	next.State = api.BatchStateApproved
	s.Require().NoError(s.store.Upsert(s.ctx, next))

	s.ErrorIs(s.store.Upsert(s.ctx, testBatch("B-1", 2, baseTime)), ErrVersionConflict, "stale writer")
	s.ErrorIs(s.store.Upsert(s.ctx, testBatch("B-1", 5, baseTime)), ErrVersionConflict, "skipped revisions")
	s.ErrorIs(s.store.Upsert(s.ctx, testBatch("B-9", 2, baseTime)), ErrVersionConflict, "update of absent instance")

	got, err := s.store.Get(s.ctx, "B-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Meta().Revision)
	s.Equal(string(api.BatchStateApproved), got.StateName())
}

func (s *FlowStoreSuite) TestUpsert_RejectsInvalidInstances() {
	s.Error(s.store.Upsert(s.ctx, nil))
	s.Error(s.store.Upsert(s.ctx, testBatch("", 1, baseTime)))
	s.Error(s.store.Upsert(s.ctx, testBatch("B-1", 0, baseTime)))
}

func (s *FlowStoreSuite) TestList_FiltersAndOrders() {
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-2", 1, baseTime.Add(2*time.Hour))))
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime.Add(time.Hour))))
	s.Require().NoError(s.store.Upsert(s.ctx, testReceipt("INB-1", 1, baseTime)))
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-0", 1, baseTime.Add(time.Hour))))

	batches, err := s.store.List(s.ctx, api.FlowBatch)
	s.Require().NoError(err)
	s.Equal([]string{"B-0", "B-1", "B-2"}, ids(batches))

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Equal([]string{"INB-1", "B-0", "B-1", "B-2"}, ids(all))

	modules, err := s.store.List(s.ctx, api.FlowModule)
	s.Require().NoError(err)
	s.Empty(modules)
}

func (s *FlowStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Upsert(s.ctx, testReceipt("INB-1", 1, baseTime)))
	s.Require().NoError(s.store.Delete(s.ctx, "INB-1"))

	_, err := s.store.Get(s.ctx, "INB-1")
	s.ErrorIs(err, ErrInstanceNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, "INB-1"), ErrInstanceNotFound)

	receipts, err := s.store.List(s.ctx, api.FlowReceipt)
	s.Require().NoError(err)
	s.Empty(receipts)
}

func (s *FlowStoreSuite) TestVersion_AdvancesOnEveryWrite() {
	v0, err := s.store.Version(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime)))
	v1, err := s.store.Version(s.ctx)
	s.Require().NoError(err)
	s.Equal(v0.Version+1, v1.Version)
	s.False(v1.UpdatedAt.IsZero())

	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 2, baseTime)))
	s.Require().NoError(s.store.Delete(s.ctx, "B-1"))
	v3, err := s.store.Version(s.ctx)
	s.Require().NoError(err)
	s.Equal(v0.Version+3, v3.Version)

	s.Require().Error(s.store.Upsert(s.ctx, testBatch("B-7", 4, baseTime)))
	v4, err := s.store.Version(s.ctx)
	s.Require().NoError(err)
	s.Equal(v3.Version, v4.Version, "failed writes leave the version alone")
}

func (s *FlowStoreSuite) TestUpsert_ConcurrentWritersOneWins() {
	s.Require().NoError(s.store.Upsert(s.ctx, testBatch("B-1", 1, baseTime)))

	const writers = 8
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Upsert(s.ctx, testBatch("B-1", 2, baseTime))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrVersionConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}

func (s *FlowStoreSuite) TestGet_ReturnsIndependentCopies() {
	b := testBatch("B-1", 1, baseTime)
	s.Require().NoError(s.store.Upsert(s.ctx, b))
	b.Draft.AllocatedCells[0] = "MUTATED"

	got, err := s.store.Get(s.ctx, "B-1")
	s.Require().NoError(err)
	got.(*api.BatchInstance).Draft.AllocatedCells[1] = "MUTATED"

	again, err := s.store.Get(s.ctx, "B-1")
	s.Require().NoError(err)
	s.Equal([]string{"CELL-LFP-0001", "CELL-LFP-0002"}, again.(*api.BatchInstance).Draft.AllocatedCells)
}

func ids(list []api.Instance) []string {
	out := make([]string, 0, len(list))
	for _, inst := range list {
		out = append(out, inst.Meta().InstanceID)
	}
	return out
}
