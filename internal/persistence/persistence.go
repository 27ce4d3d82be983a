package persistence

// Persistence bundles the flow store and the event store so the engine
// can depend on a single abstraction.
type Persistence struct {
	Flows  FlowStore
	Events EventStore
}

// NewMemory returns an in-memory Persistence.
func NewMemory() Persistence {
	return Persistence{Flows: NewMemoryStore(), Events: NewMemoryEventStore()}
}
