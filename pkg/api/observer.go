package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Transition describes one persisted mutation of a flow instance.
type Transition struct {
	Operation  string
	Flow       FlowID
	InstanceID string
	From       string
	To         string
	Actor      Actor
	Duration   time.Duration
}

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay request handling.
type Observer interface {
	// OnCreated is called after a new instance has been persisted.
	OnCreated(ctx context.Context, inst Instance, actor Actor)

	// OnTransition is called after a mutation of an existing instance has
	// been persisted. From equals To for updates that do not change state.
	OnTransition(ctx context.Context, t Transition)

	// OnRejected is called when an operation fails with an error, whether a
	// request error (bad input, wrong state, wrong role) or a store failure.
	OnRejected(ctx context.Context, flow FlowID, operation string, actor Actor, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnCreated(ctx context.Context, inst Instance, actor Actor) {}
func (NoopObserver) OnTransition(ctx context.Context, t Transition)            {}
func (NoopObserver) OnRejected(ctx context.Context, flow FlowID, operation string, actor Actor, err error) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnCreated(ctx context.Context, inst Instance, actor Actor) {
	for _, o := range c.observers {
		o.OnCreated(ctx, inst, actor)
	}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, t Transition) {
	for _, o := range c.observers {
		o.OnTransition(ctx, t)
	}
}

func (c *CompositeObserver) OnRejected(ctx context.Context, flow FlowID, operation string, actor Actor, err error) {
	for _, o := range c.observers {
		o.OnRejected(ctx, flow, operation, actor, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs flow lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnCreated(ctx context.Context, inst Instance, actor Actor) {
	o.Logger.InfoContext(ctx, "flow_created",
		slog.String("flow", string(inst.Flow())),
		slog.String("instance_id", inst.Meta().InstanceID),
		slog.String("state", inst.StateName()),
		slog.String("role", string(actor.Role)),
	)
}

func (o *LoggingObserver) OnTransition(ctx context.Context, t Transition) {
	o.Logger.InfoContext(ctx, "flow_transition",
		slog.String("flow", string(t.Flow)),
		slog.String("instance_id", t.InstanceID),
		slog.String("operation", t.Operation),
		slog.String("from", t.From),
		slog.String("to", t.To),
		slog.String("role", string(t.Actor.Role)),
		slog.Duration("duration", t.Duration),
	)
}

func (o *LoggingObserver) OnRejected(ctx context.Context, flow FlowID, operation string, actor Actor, err error) {
	level := slog.LevelWarn
	if CodeOf(err) == CodeInternal {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "flow_rejected",
		slog.String("flow", string(flow)),
		slog.String("operation", operation),
		slog.String("role", string(actor.Role)),
		slog.String("code", string(CodeOf(err))),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters. It implements Observer, and can be
// combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	created         atomic.Int64
	transitions     atomic.Int64
	rejected        atomic.Int64
	conflicts       atomic.Int64
	totalTransition atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Created     int64
	Transitions int64
	Rejected    int64

	// Conflicts counts STATE_CONFLICT and VERSION_CONFLICT rejections.
	Conflicts int64

	AvgTransitionDuration time.Duration
}

func (m *BasicMetrics) OnCreated(ctx context.Context, inst Instance, actor Actor) {
	m.created.Add(1)
}

func (m *BasicMetrics) OnTransition(ctx context.Context, t Transition) {
	m.transitions.Add(1)
	m.totalTransition.Add(t.Duration.Nanoseconds())
}

func (m *BasicMetrics) OnRejected(ctx context.Context, flow FlowID, operation string, actor Actor, err error) {
	m.rejected.Add(1)
	switch CodeOf(err) {
	case CodeStateConflict, CodeVersionConflict:
		m.conflicts.Add(1)
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	transitions := m.transitions.Load()
	totalNs := m.totalTransition.Load()

	var avg time.Duration
	if transitions > 0 {
		avg = time.Duration(totalNs / transitions)
	}

	return BasicMetricsSnapshot{
		Created:               m.created.Load(),
		Transitions:           transitions,
		Rejected:              m.rejected.Load(),
		Conflicts:             m.conflicts.Load(),
		AvgTransitionDuration: avg,
	}
}
