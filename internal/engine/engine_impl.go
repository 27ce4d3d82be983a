package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/pkg/api"
)

// engineImpl is a synchronous, in-process engine. Every mutation runs
// read-compute-write under the instance's keyed lock; the store's revision
// check catches writers in other processes.
type engineImpl struct {
	store    persistence.FlowStore
	events   persistence.EventStore
	observer api.Observer
	locks    *keyedMutex

	clock func() time.Time
	newID func(prefix string) string
}

var _ api.Engine = (*engineImpl)(nil)

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Persistence persistence.Persistence
	Observer    api.Observer

	// Clock defaults to time.Now. Times are always stored in UTC.
	Clock func() time.Time

	// NewID defaults to prefix + "-" + the first 8 hex digits of a random UUID.
	NewID func(prefix string) string
}

func NewInMemoryEngine() api.Engine {
	return NewEngine(persistence.NewMemory())
}

func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	flows, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{Flows: flows, Events: events}), nil
}

func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	flows, err := persistence.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewPostgresEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{Flows: flows, Events: events}), nil
}

// NewRedisEngine creates an engine that keeps instances and their history
// in Redis under the "packflow:" prefix.
func NewRedisEngine(client *redis.Client) api.Engine {
	return NewEngine(persistence.Persistence{
		Flows:  persistence.NewRedisStore(client, "packflow:"),
		Events: persistence.NewRedisEventStore(client, "packflow:"),
	})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = randomID
	}
	return &engineImpl{
		store:    cfg.Persistence.Flows,
		events:   events,
		observer: obs,
		locks:    newKeyedMutex(),
		clock:    clock,
		newID:    newID,
	}
}

// NewEngine returns an Engine over the given persistence with no observer.
// External users access this via packflow.NewEngine.
func NewEngine(p persistence.Persistence) api.Engine {
	return NewEngineWithConfig(Config{
		Persistence: p,
	})
}

func randomID(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (e *engineImpl) now() time.Time {
	return e.clock().UTC()
}

// validator is implemented by every request type in pkg/api.
type validator interface {
	Validate() error
}

// call identifies one handler invocation for history and observers.
type call struct {
	op    string
	flow  api.FlowID
	actor api.Actor
}

func (e *engineImpl) reject(ctx context.Context, c call, err error) error {
	e.observer.OnRejected(ctx, c.flow, c.op, c.actor, err)
	return err
}

// mutation is one read-compute-write on an existing instance of type T.
type mutation[T api.Instance] struct {
	call
	id string

	// locks are further keys held for the whole mutation.
	locks []string

	// related returns further lock keys. It is evaluated on an unlocked
	// read, so it may only look at fields that never change after creation.
	related func(T) []string

	// apply checks the transition, the record guard and the business rules,
	// then mutates the loaded instance in place. The returned detail is
	// recorded in the history event.
	apply func(inst T, now time.Time) (string, error)
}

func mutate[T api.Instance](ctx context.Context, e *engineImpl, req validator, m mutation[T]) (T, error) {
	var zero T
	if err := req.Validate(); err != nil {
		return zero, e.reject(ctx, m.call, err)
	}

	start := time.Now()
	lockKeys := append([]string{m.id}, m.locks...)
	if m.related != nil {
		pre, err := load[T](ctx, e, m.flow, m.id)
		if err != nil {
			return zero, e.reject(ctx, m.call, err)
		}
		lockKeys = append(lockKeys, m.related(pre)...)
	}
	unlock := e.locks.Lock(lockKeys...)
	defer unlock()

	inst, err := load[T](ctx, e, m.flow, m.id)
	if err != nil {
		return zero, e.reject(ctx, m.call, err)
	}
	from := inst.StateName()
	now := e.now()

	detail, err := m.apply(inst, now)
	if err != nil {
		return zero, e.reject(ctx, m.call, err)
	}

	env := inst.Meta()
	env.Revision++
	env.UpdatedAt = now
	if err := e.persist(ctx, inst); err != nil {
		return zero, e.reject(ctx, m.call, err)
	}

	to := inst.StateName()
	typ := api.EventFlowTransition
	if from == to {
		typ = api.EventFlowUpdated
	}
	e.record(ctx, m.call, api.FlowEvent{
		InstanceID: m.id,
		FlowID:     m.flow,
		At:         now,
		Type:       typ,
		Operation:  m.op,
		From:       from,
		To:         to,
		Detail:     detail,
	})
	e.observer.OnTransition(ctx, api.Transition{
		Operation:  m.op,
		Flow:       m.flow,
		InstanceID: m.id,
		From:       from,
		To:         to,
		Actor:      m.actor,
		Duration:   time.Since(start),
	})
	return inst, nil
}

// creation builds a new instance of type T.
type creation[T api.Instance] struct {
	call
	action api.ActionID
	prefix string
	locks  []string

	// build runs the business rules and returns the instance without its
	// envelope, which is filled in afterwards.
	build func(now time.Time) (T, error)
}

func create[T api.Instance](ctx context.Context, e *engineImpl, req validator, c creation[T]) (T, error) {
	var zero T
	if err := req.Validate(); err != nil {
		return zero, e.reject(ctx, c.call, err)
	}
	if st := authorize(c.actor.Role, c.action); st != nil {
		return zero, e.reject(ctx, c.call, st)
	}

	if len(c.locks) > 0 {
		unlock := e.locks.Lock(c.locks...)
		defer unlock()
	}

	now := e.now()
	inst, err := c.build(now)
	if err != nil {
		return zero, e.reject(ctx, c.call, err)
	}
	env := inst.Meta()
	env.FlowID = c.flow
	env.InstanceID = e.newID(c.prefix)
	env.CreatedAt = now
	env.UpdatedAt = now
	env.Revision = 1

	if err := e.persist(ctx, inst); err != nil {
		return zero, e.reject(ctx, c.call, err)
	}
	e.record(ctx, c.call, api.FlowEvent{
		InstanceID: env.InstanceID,
		FlowID:     c.flow,
		At:         now,
		Type:       api.EventFlowCreated,
		Operation:  c.op,
		To:         inst.StateName(),
	})
	e.observer.OnCreated(ctx, inst, c.actor)
	return inst, nil
}

func (e *engineImpl) persist(ctx context.Context, inst api.Instance) error {
	err := e.store.Upsert(ctx, inst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrVersionConflict):
		return api.VersionConflict(inst.Meta().InstanceID, err)
	default:
		return api.Internal(err)
	}
}

// record appends a history event. The mutation is already persisted, so a
// failed append is reported to the observer rather than to the caller.
func (e *engineImpl) record(ctx context.Context, c call, ev api.FlowEvent) {
	ev.Actor = c.actor.Label()
	ev.Role = c.actor.Role
	if err := e.events.AppendEvent(ctx, ev); err != nil {
		e.observer.OnRejected(ctx, c.flow, "history:"+c.op, c.actor, api.Internal(err))
	}
}

// load fetches an instance and asserts its concrete type. An id that
// belongs to another flow type is reported as not found.
func load[T api.Instance](ctx context.Context, e *engineImpl, flow api.FlowID, id string) (T, error) {
	var zero T
	inst, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return zero, api.NotFound("Flow not found: %s", id)
		}
		return zero, api.Internal(err)
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, api.NotFound("Flow not found: %s is not a %s instance", id, flow)
	}
	return typed, nil
}

func list[T api.Instance](ctx context.Context, e *engineImpl, flow api.FlowID) ([]T, error) {
	all, err := e.store.List(ctx, flow)
	if err != nil {
		return nil, api.Internal(err)
	}
	out := make([]T, 0, len(all))
	for _, inst := range all {
		if typed, ok := inst.(T); ok {
			out = append(out, typed)
		}
	}
	return out, nil
}

func getAs[T api.Instance](ctx context.Context, e *engineImpl, flow api.FlowID, id string) (T, error) {
	if strings.TrimSpace(id) == "" {
		var zero T
		return zero, api.BadRequest("Missing id parameter")
	}
	return load[T](ctx, e, flow, id)
}

// Generic operations.

func (e *engineImpl) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, api.BadRequest("Missing id parameter")
	}
	inst, err := e.store.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return nil, api.NotFound("Flow not found: %s", instanceID)
		}
		return nil, api.Internal(err)
	}
	return inst, nil
}

func (e *engineImpl) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	if flow != "" && !flow.Valid() {
		return nil, api.BadRequest("Unknown flow %q", flow)
	}
	out, err := e.store.List(ctx, flow)
	if err != nil {
		return nil, api.Internal(err)
	}
	return out, nil
}

func (e *engineImpl) Delete(ctx context.Context, req api.InstanceRequest) error {
	c := call{op: "delete", actor: req.Actor}
	if err := req.Validate(); err != nil {
		return e.reject(ctx, c, err)
	}
	if req.Actor.Role != api.RoleSystemAdmin {
		return e.reject(ctx, c, api.Forbidden("Requires System Admin Role"))
	}

	unlock := e.locks.Lock(req.InstanceID)
	defer unlock()

	inst, err := e.Get(ctx, req.InstanceID)
	if err != nil {
		return e.reject(ctx, c, err)
	}
	c.flow = inst.Flow()
	start := time.Now()
	if err := e.store.Delete(ctx, req.InstanceID); err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return e.reject(ctx, c, api.NotFound("Flow not found: %s", req.InstanceID))
		}
		return e.reject(ctx, c, api.Internal(err))
	}
	e.record(ctx, c, api.FlowEvent{
		InstanceID: req.InstanceID,
		FlowID:     c.flow,
		At:         e.now(),
		Type:       api.EventFlowDeleted,
		Operation:  c.op,
		From:       inst.StateName(),
	})
	e.observer.OnTransition(ctx, api.Transition{
		Operation:  c.op,
		Flow:       c.flow,
		InstanceID: req.InstanceID,
		From:       inst.StateName(),
		Actor:      req.Actor,
		Duration:   time.Since(start),
	})
	return nil
}

func (e *engineImpl) History(ctx context.Context, instanceID string) ([]api.FlowEvent, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, api.BadRequest("Missing id parameter")
	}
	events, err := e.events.ListEvents(ctx, instanceID)
	if err != nil {
		return nil, api.Internal(err)
	}
	if len(events) == 0 {
		// No history and no instance: the id was never used.
		if _, err := e.Get(ctx, instanceID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (e *engineImpl) StoreVersion(ctx context.Context) (api.StoreVersion, error) {
	v, err := e.store.Version(ctx)
	if err != nil {
		return api.StoreVersion{}, api.Internal(err)
	}
	return v, nil
}
