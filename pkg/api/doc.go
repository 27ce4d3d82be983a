// Package api contains the public types of the packflow engine: flow
// instances, requests, guard results, errors, observers and the Engine
// interface itself.
//
// Most users interact with the higher-level packflow package, which
// re-exports selected types and constructors from this package. The api
// package is intended for integrations that need the concrete types, such
// as an HTTP layer or a custom store.
//
// # Flow instances
//
// A flow instance is one running occurrence of a plant workflow: a SKU
// blueprint, a purchase order, an inbound receipt, a production batch or a
// module assembly. Instance is a sealed interface; the five concrete
// pointer types are the only implementations, so a type switch over them
// is exhaustive:
//
//	switch v := inst.(type) {
//	case *api.SkuInstance:
//	case *api.PurchaseOrderInstance:
//	case *api.ReceiptInstance:
//	case *api.BatchInstance:
//	case *api.ModuleInstance:
//	}
//
// Every instance embeds an Envelope (flow id, instance id, timestamps and a
// per-instance Revision) and a flow-specific draft record. Audit stamps
// (actor and time) are set once and never overwritten.
//
// EncodeInstance and DecodeInstance serialize instances as JSON with the
// flowId field as discriminator.
//
// # Roles and guards
//
// Role is always passed explicitly inside a request. Guards return an
// ActionState: Enabled, plus a Reason whenever the action is disabled.
// Stage contexts (S1Context ... S5Context) summarize upstream readiness for
// the stage guards.
//
// # Errors
//
// Engine operations return *Error with one of the ErrorCode values.
// Response wraps results in the {ok, data} / {ok, error} envelope used at
// the HTTP boundary.
//
// # Observability
//
// Observer receives OnCreated, OnTransition and OnRejected callbacks.
// LoggingObserver writes log/slog records, BasicMetrics keeps atomic
// counters, and NewCompositeObserver fans out to several observers.
package api
