// Package telemetry exports engine and worker activity as Prometheus metrics.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/packflow/pkg/api"
	"github.com/petrijr/packflow/pkg/worker"
)

const namespace = "packflow"

// Metrics is an api.Observer that records flow activity in its own
// Prometheus registry. Use Handler to expose it.
type Metrics struct {
	registry *prometheus.Registry

	Created     *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Commands    *prometheus.CounterVec
}

var _ api.Observer = (*Metrics)(nil)

// New creates Metrics with a private registry. When withRuntime is true the
// Go runtime and process collectors are registered too.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "created_total",
				Help:      "Flow instances created",
			},
			[]string{"flow"},
		),

		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "transitions_total",
				Help:      "Persisted mutations of existing instances",
			},
			[]string{"flow", "operation", "to"},
		),

		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "rejected_total",
				Help:      "Operations that failed, by error code",
			},
			[]string{"flow", "operation", "code"},
		),

		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "transition_duration_seconds",
				Help:      "Time spent in a mutation including persistence",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"flow", "operation"},
		),

		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "worker",
				Name:      "commands_total",
				Help:      "Async commands processed, by outcome (ok, retry, failed)",
			},
			[]string{"flow", "operation", "outcome"},
		),
	}

	m.registry.MustRegister(m.Created, m.Transitions, m.Rejected, m.Duration, m.Commands)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) OnCreated(ctx context.Context, inst api.Instance, actor api.Actor) {
	m.Created.WithLabelValues(inst.Flow().Name()).Inc()
}

func (m *Metrics) OnTransition(ctx context.Context, t api.Transition) {
	flow := t.Flow.Name()
	m.Transitions.WithLabelValues(flow, t.Operation, t.To).Inc()
	m.Duration.WithLabelValues(flow, t.Operation).Observe(t.Duration.Seconds())
}

func (m *Metrics) OnRejected(ctx context.Context, flow api.FlowID, operation string, actor api.Actor, err error) {
	m.Rejected.WithLabelValues(flow.Name(), operation, string(api.CodeOf(err))).Inc()
}

// OnCommand matches worker.Config.OnResult.
func (m *Metrics) OnCommand(ctx context.Context, r worker.Result) {
	outcome := "ok"
	switch {
	case r.Retrying:
		outcome = "retry"
	case r.Err != nil:
		outcome = "failed"
	}
	m.Commands.WithLabelValues(r.Command.Flow.Name(), r.Command.Operation, outcome).Inc()
}
