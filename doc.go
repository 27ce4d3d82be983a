// Package packflow provides a lightweight, embeddable flow engine for
// battery-pack manufacturing.
//
// A plant runs five interlocking flows, each a small state machine over a
// persisted instance:
//
//  1. FLOW-001 SKU blueprints
//  2. FLOW-004 purchase orders
//  3. FLOW-003 inbound receipts, serialization and QC of cells
//  4. FLOW-002 production batches that allocate released cells
//  5. FLOW-006 modules built from the cells of an in-progress batch
//
// # Engine
//
// The Engine validates each request, checks the acting role against the
// action, applies exactly one transition and persists the result with an
// optimistic revision check. Every call reports failures as *api.Error
// values with a stable code (BAD_REQUEST, NOT_FOUND, STATE_CONFLICT,
// FORBIDDEN, VERSION_CONFLICT, INTERNAL).
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//   - MongoDB
//   - NATS JetStream key-value buckets
//
// # Guards
//
// Stage guards (S1 through S5) answer "may this role perform this action
// now?" from the cross-flow state of the plant, e.g. batches cannot be
// planned until an SKU is active and cells have been released. The same
// guards are evaluated by the engine before each transition and exposed
// to UIs through the HTTP API.
//
// # Worker
//
// A Worker pulls named operations from a command queue and executes them
// against an Engine, retrying revision conflicts with a linear backoff.
// Each command runs inside an OpenTelemetry span.
//
// # LocalPlant
//
// LocalPlant bundles an in-memory engine, queue, and worker into a single,
// process-local helper useful for development and unit testing. It can
// seed a demo plant, run operations synchronously or through workers.
//
// The packflow command (cmd/packflow) serves the HTTP API with Prometheus
// metrics, loads seed fixtures and exports snapshots.
package packflow
