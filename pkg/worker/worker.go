package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/packflow/internal/dispatch"
	"github.com/petrijr/packflow/internal/taskqueue"
	"github.com/petrijr/packflow/pkg/api"
)

const tracerName = "github.com/petrijr/packflow/pkg/worker"

// Config controls retries and instrumentation of a Worker.
type Config struct {
	// MaxAttempts is the total number of executions of a command that keeps
	// failing with a retryable error. <= 0 means 1 (no retries).
	MaxAttempts int

	// Backoff is the delay before the first retry; retry n waits n*Backoff.
	Backoff time.Duration

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnResult, if set, is called once per processed command.
	OnResult func(ctx context.Context, r Result)
}

// Result is the outcome of one command execution.
type Result struct {
	Command  taskqueue.Command
	Instance api.Instance
	Err      error

	// Retrying is true when the command failed but was put back on the queue.
	Retrying bool
}

// Worker pulls commands from a Queue and executes them against an Engine.
type Worker struct {
	engine api.Engine
	queue  taskqueue.Queue
	cfg    Config
	tracer trace.Tracer
	logger *slog.Logger
}

// New creates a Worker that does not retry.
func New(engine api.Engine, queue taskqueue.Queue) *Worker {
	return NewWithConfig(engine, queue, Config{})
}

// NewWithConfig creates a Worker with the given configuration.
func NewWithConfig(engine api.Engine, queue taskqueue.Queue, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		engine: engine,
		queue:  queue,
		cfg:    cfg,
		tracer: tp.Tracer(tracerName),
		logger: logger,
	}
}

// Enqueue schedules op on flow for asynchronous execution. req is the
// operation's request value (or any JSON-compatible equivalent); its actor
// is replaced by actor when the command runs. The command id is returned.
func (w *Worker) Enqueue(ctx context.Context, flow api.FlowID, op string, actor api.Actor, req any) (string, error) {
	return w.EnqueueAt(ctx, flow, op, actor, req, time.Time{})
}

// EnqueueAt is like Enqueue but the command runs no earlier than at.
func (w *Worker) EnqueueAt(ctx context.Context, flow api.FlowID, op string, actor api.Actor, req any, at time.Time) (string, error) {
	if _, ok := dispatch.Lookup(flow, op); !ok {
		return "", api.BadRequest("Unknown operation %s.%s", flow.Name(), op)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", api.BadRequest("Request is not JSON encodable: %v", err)
	}
	c := taskqueue.Command{
		ID:         uuid.NewString(),
		Flow:       flow,
		Operation:  op,
		Actor:      actor,
		Body:       body,
		EnqueuedAt: time.Now(),
		NotBefore:  at,
	}
	if err := w.queue.Enqueue(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// retryable reports whether a failed command may succeed when run again.
// Request, state and role errors are final. A create that failed
// internally is not retried: its write may have landed and a second run
// would create a duplicate instance.
func retryable(op string, err error) bool {
	switch api.CodeOf(err) {
	case api.CodeVersionConflict:
		return true
	case api.CodeInternal:
		return op != "create"
	}
	return false
}

// ProcessOne pulls a single command from the queue and executes it.
// Returns (processed, error):
//   - processed == false: no command was obtained; err is the dequeue error
//     (typically context cancellation).
//   - processed == true: a command ran; err is its final error. A failure
//     that was put back on the queue for retry reports err == nil.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	c, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}

	attempt := c.Attempts + 1
	ctx, span := w.tracer.Start(ctx, fmt.Sprintf("packflow.command %s.%s", c.Flow.Name(), c.Operation),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("packflow.command_id", c.ID),
			attribute.String("packflow.flow", string(c.Flow)),
			attribute.String("packflow.operation", c.Operation),
			attribute.String("packflow.actor.role", string(c.Actor.Role)),
			attribute.Int("packflow.attempt", attempt),
		),
	)
	defer span.End()

	inst, runErr := dispatch.Run(ctx, w.engine, c.Flow, c.Operation, c.Actor, c.Body)
	if runErr == nil {
		if inst != nil {
			span.SetAttributes(
				attribute.String("packflow.instance_id", inst.Meta().InstanceID),
				attribute.String("packflow.state", inst.StateName()),
			)
		}
		span.SetStatus(codes.Ok, "")
		w.report(ctx, Result{Command: *c, Instance: inst})
		return true, nil
	}

	span.RecordError(runErr)
	span.SetAttributes(attribute.String("packflow.error_code", string(api.CodeOf(runErr))))
	span.SetStatus(codes.Error, runErr.Error())

	if retryable(c.Operation, runErr) && attempt < w.cfg.MaxAttempts {
		next := *c
		next.Attempts = attempt
		next.NotBefore = time.Now().Add(time.Duration(attempt) * w.cfg.Backoff)
		if err := w.queue.Enqueue(context.WithoutCancel(ctx), next); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("requeue command %s: %w", c.ID, err))
		} else {
			w.logger.WarnContext(ctx, "command_retry",
				slog.String("command_id", c.ID),
				slog.String("operation", c.Flow.Name()+"."+c.Operation),
				slog.Int("attempt", attempt),
				slog.Any("error", runErr),
			)
			w.report(ctx, Result{Command: *c, Err: runErr, Retrying: true})
			return true, nil
		}
	}

	w.report(ctx, Result{Command: *c, Err: runErr})
	return true, runErr
}

func (w *Worker) report(ctx context.Context, r Result) {
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(ctx, r)
	}
}

// Run calls ProcessOne until ctx is cancelled. Command failures are logged
// and do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !processed {
				return err
			}
			w.logger.WarnContext(ctx, "command_failed",
				slog.String("code", string(api.CodeOf(err))),
				slog.Any("error", err),
			)
		}
	}
}
