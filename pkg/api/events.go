package api

import "time"

// EventType identifies a flow history event.
type EventType string

const (
	EventFlowCreated    EventType = "flow.created"
	EventFlowTransition EventType = "flow.transition"
	EventFlowUpdated    EventType = "flow.updated"
	EventFlowDeleted    EventType = "flow.deleted"
)

// FlowEvent is an append-only audit record written for every persisted
// mutation.
type FlowEvent struct {
	InstanceID string    `json:"instanceId"`
	FlowID     FlowID    `json:"flowId"`
	At         time.Time `json:"at"`
	Type       EventType `json:"type"`
	Operation  string    `json:"operation"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Role       Role      `json:"role,omitempty"`

	// Short human-oriented detail such as "released 80 items". Keep this
	// low-volume.
	Detail string `json:"detail,omitempty"`
}

// StoreVersion is the global version of a flow store.
type StoreVersion struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}
