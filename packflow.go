package packflow

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Instance             = api.Instance
	FlowID               = api.FlowID
	Role                 = api.Role
	Actor                = api.Actor
	Stage                = api.Stage
	ActionState          = api.ActionState
	FlowEvent            = api.FlowEvent
	StoreVersion         = api.StoreVersion
	Error                = api.Error
	ErrorCode            = api.ErrorCode
	Observer             = api.Observer
	Transition           = api.Transition
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Flow types.

const (
	FlowSku           = api.FlowSku
	FlowBatch         = api.FlowBatch
	FlowReceipt       = api.FlowReceipt
	FlowPurchaseOrder = api.FlowPurchaseOrder
	FlowModule        = api.FlowModule
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.NewMemory(),
		Observer:    obs,
	})
}

// NewSQLiteEngine returns an Engine that persists instances and their
// history in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewPostgresEngine returns an Engine that persists instances in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(db)
}

// NewRedisEngine returns an Engine that persists instances in Redis.
func NewRedisEngine(client *redis.Client) Engine {
	return engine.NewRedisEngine(client)
}

// NewMongoEngine returns an Engine that persists instances in MongoDB.
// History is kept in process memory.
func NewMongoEngine(client *mongo.Client) Engine {
	return engine.NewEngine(persistence.Persistence{
		Flows:  persistence.NewMongoStore(client, "", ""),
		Events: persistence.NewMemoryEventStore(),
	})
}

// Convenience helpers that just forward to the underlying Engine.

// GetInstance fetches an instance of any flow by ID.
func GetInstance(ctx context.Context, eng Engine, id string) (Instance, error) {
	return eng.Get(ctx, id)
}

// ListInstances lists the instances of one flow, or of all flows when flow is "".
func ListInstances(ctx context.Context, eng Engine, flow FlowID) ([]Instance, error) {
	return eng.List(ctx, flow)
}

// History returns the audit trail of an instance, oldest first.
func History(ctx context.Context, eng Engine, id string) ([]FlowEvent, error) {
	return eng.History(ctx, id)
}
