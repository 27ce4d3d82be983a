package taskqueue

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/petrijr/packflow/pkg/api"
)

// queueSuite runs the behaviour every persistent queue must share.
type queueSuite struct {
	suite.Suite
	newQueue func() Queue
	queue    Queue
}

func (s *queueSuite) SetupTest() {
	s.queue = s.newQueue()
}

func (s *queueSuite) TestEnqueueDequeuePreservesCommand() {
	ctx := context.Background()
	in := Command{
		ID:        "cmd-1",
		Flow:      api.FlowBatch,
		Operation: "allocate",
		Actor:     api.Actor{Role: api.RolePlanner, Name: "planner"},
		Body:      []byte(`{"instanceId":"BATCH-1","serials":["CELL-0001"]}`),
		Attempts:  1,
	}
	s.Require().NoError(s.queue.Enqueue(ctx, in))
	s.Equal(1, s.queue.Len())

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := s.queue.Dequeue(dctx)
	s.Require().NoError(err)
	s.Equal(in.ID, out.ID)
	s.Equal(in.Flow, out.Flow)
	s.Equal(in.Operation, out.Operation)
	s.Equal(in.Actor, out.Actor)
	s.JSONEq(string(in.Body), string(out.Body))
	s.Equal(1, out.Attempts)
	s.False(out.EnqueuedAt.IsZero())
	s.Equal(0, s.queue.Len())
}

func (s *queueSuite) TestOrderAndNotBefore() {
	ctx := context.Background()
	later := Command{ID: "later", Flow: api.FlowSku, Operation: "submit", NotBefore: time.Now().Add(300 * time.Millisecond)}
	s.Require().NoError(s.queue.Enqueue(ctx, later))
	s.Require().NoError(s.queue.Enqueue(ctx, Command{ID: "first", Flow: api.FlowSku, Operation: "submit"}))
	s.Require().NoError(s.queue.Enqueue(ctx, Command{ID: "second", Flow: api.FlowSku, Operation: "submit"}))

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var ids []string
	for i := 0; i < 3; i++ {
		c, err := s.queue.Dequeue(dctx)
		s.Require().NoError(err)
		ids = append(ids, c.ID)
	}
	s.Equal([]string{"first", "second", "later"}, ids)
}

func (s *queueSuite) TestDequeueHonoursCancellation() {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.queue.Dequeue(ctx)
	s.Error(err)
}
