package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/internal/taskqueue"
	"github.com/petrijr/packflow/pkg/api"
)

var engineer = api.Actor{Role: api.RoleEngineering, Name: "engineer"}

func newTracing() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	rec := tracetest.NewSpanRecorder()
	return rec, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func skuRequest(code string) api.CreateSkuRequest {
	return api.CreateSkuRequest{Draft: api.SkuDraft{SkuCode: code, SkuName: "pack", CellsPerModule: 12}}
}

func TestWorker_ProcessOneRunsCommandInSpan(t *testing.T) {
	ctx := context.Background()
	rec, tp := newTracing()
	eng := engine.NewInMemoryEngine()
	q := taskqueue.NewInMemoryQueue()

	var results []Result
	w := NewWithConfig(eng, q, Config{
		TracerProvider: tp,
		OnResult:       func(_ context.Context, r Result) { results = append(results, r) },
	})

	id, err := w.Enqueue(ctx, api.FlowSku, "create", engineer, skuRequest("SKU-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Command.ID)
	sku, ok := results[0].Instance.(*api.SkuInstance)
	require.True(t, ok)
	assert.Equal(t, api.SkuStateDraft, sku.State)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "packflow.command sku.create", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	a := attrs(spans[0])
	assert.Equal(t, id, a["packflow.command_id"].AsString())
	assert.Equal(t, "ENGINEERING", a["packflow.actor.role"].AsString())
	assert.Equal(t, sku.InstanceID, a["packflow.instance_id"].AsString())
	assert.Equal(t, int64(1), a["packflow.attempt"].AsInt64())
}

func TestWorker_FinalErrorIsRecorded(t *testing.T) {
	ctx := context.Background()
	rec, tp := newTracing()
	eng := engine.NewInMemoryEngine()
	q := taskqueue.NewInMemoryQueue()
	w := NewWithConfig(eng, q, Config{TracerProvider: tp, MaxAttempts: 5})

	operator := api.Actor{Role: api.RoleOperator}
	_, err := w.Enqueue(ctx, api.FlowSku, "create", operator, skuRequest("SKU-1"))
	require.NoError(t, err)

	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	require.Error(t, err)
	assert.Equal(t, api.CodeForbidden, api.CodeOf(err))
	assert.Equal(t, 0, q.Len(), "role errors are not retried")

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "FORBIDDEN", attrs(spans[0])["packflow.error_code"].AsString())
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestWorker_EnqueueRejectsUnknownOperation(t *testing.T) {
	w := New(engine.NewInMemoryEngine(), taskqueue.NewInMemoryQueue())
	_, err := w.Enqueue(context.Background(), api.FlowSku, "launch", engineer, nil)
	require.Error(t, err)
	assert.Equal(t, api.CodeBadRequest, api.CodeOf(err))
}

// conflictingStore fails the first n updates with a version conflict.
type conflictingStore struct {
	persistence.FlowStore
	remaining atomic.Int32
}

func (s *conflictingStore) Upsert(ctx context.Context, inst api.Instance) error {
	if inst.Meta().Revision > 1 && s.remaining.Add(-1) >= 0 {
		return fmt.Errorf("%w: simulated", persistence.ErrVersionConflict)
	}
	return s.FlowStore.Upsert(ctx, inst)
}

func TestWorker_RetriesVersionConflictWithBackoff(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemory()
	store := &conflictingStore{FlowStore: mem.Flows}
	store.remaining.Store(1)
	eng := engine.NewEngine(persistence.Persistence{Flows: store, Events: mem.Events})

	sku, err := eng.CreateSku(ctx, api.CreateSkuRequest{Actor: engineer, Draft: skuRequest("SKU-1").Draft})
	require.NoError(t, err)

	q := taskqueue.NewInMemoryQueue()
	backoff := 40 * time.Millisecond
	var mu sync.Mutex
	var results []Result
	w := NewWithConfig(eng, q, Config{
		MaxAttempts: 3,
		Backoff:     backoff,
		OnResult: func(_ context.Context, r Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
	})

	_, err = w.Enqueue(ctx, api.FlowSku, "submit", engineer, api.InstanceRequest{InstanceID: sku.InstanceID})
	require.NoError(t, err)

	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.NoError(t, err, "a retried failure is not reported as final")
	assert.Equal(t, 1, q.Len())

	start := time.Now()
	processed, err = w.ProcessOne(ctx)
	require.True(t, processed)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), backoff/2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	assert.True(t, results[0].Retrying)
	assert.Equal(t, api.CodeVersionConflict, api.CodeOf(results[0].Err))
	assert.Equal(t, 1, results[1].Command.Attempts)
	assert.Equal(t, "Review", results[1].Instance.StateName())
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemory()
	store := &conflictingStore{FlowStore: mem.Flows}
	store.remaining.Store(100)
	eng := engine.NewEngine(persistence.Persistence{Flows: store, Events: mem.Events})
	sku, err := eng.CreateSku(ctx, api.CreateSkuRequest{Actor: engineer, Draft: skuRequest("SKU-1").Draft})
	require.NoError(t, err)

	q := taskqueue.NewInMemoryQueue()
	w := NewWithConfig(eng, q, Config{MaxAttempts: 2})
	_, err = w.Enqueue(ctx, api.FlowSku, "submit", engineer, api.InstanceRequest{InstanceID: sku.InstanceID})
	require.NoError(t, err)

	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.Error(t, err)
	assert.Equal(t, api.CodeVersionConflict, api.CodeOf(err))
	assert.Equal(t, 0, q.Len())
}

// failingStore fails every write with a storage error.
type failingStore struct {
	persistence.FlowStore
}

func (s failingStore) Upsert(ctx context.Context, inst api.Instance) error {
	return errors.New("disk unavailable")
}

func TestWorker_InternalCreateFailureIsFinal(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemory()
	eng := engine.NewEngine(persistence.Persistence{Flows: failingStore{FlowStore: mem.Flows}, Events: mem.Events})

	q := taskqueue.NewInMemoryQueue()
	w := NewWithConfig(eng, q, Config{MaxAttempts: 3})
	_, err := w.Enqueue(ctx, api.FlowSku, "create", engineer, skuRequest("SKU-1"))
	require.NoError(t, err)

	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.Error(t, err)
	assert.Equal(t, api.CodeInternal, api.CodeOf(err))
	assert.Equal(t, 0, q.Len())
}

func TestRetryable(t *testing.T) {
	conflict := api.VersionConflict("SKU-1", persistence.ErrVersionConflict)
	internal := api.Internal(errors.New("boom"))

	assert.True(t, retryable("create", conflict))
	assert.True(t, retryable("submit", conflict))
	assert.True(t, retryable("submit", internal))
	assert.False(t, retryable("create", internal))
	assert.False(t, retryable("submit", api.BadRequest("bad")))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	eng := engine.NewInMemoryEngine()
	q := taskqueue.NewInMemoryQueue()
	w := New(eng, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	_, err := w.Enqueue(ctx, api.FlowSku, "create", engineer, skuRequest("SKU-1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		skus, err := eng.ListSkus(context.Background())
		return err == nil && len(skus) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
