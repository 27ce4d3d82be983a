package api

import (
	"strings"
	"time"
)

// FlowID discriminates the flow instance types hosted by the engine.
type FlowID string

const (
	FlowSku           FlowID = "FLOW-001"
	FlowBatch         FlowID = "FLOW-002"
	FlowReceipt       FlowID = "FLOW-003"
	FlowPurchaseOrder FlowID = "FLOW-004"
	FlowModule        FlowID = "FLOW-006"
)

// AllFlows lists every flow type in FlowID order.
var AllFlows = []FlowID{FlowSku, FlowBatch, FlowReceipt, FlowPurchaseOrder, FlowModule}

var flowNames = map[FlowID]string{
	FlowSku:           "sku",
	FlowBatch:         "batch",
	FlowReceipt:       "inbound",
	FlowPurchaseOrder: "procurement",
	FlowModule:        "module",
}

// Valid reports whether f is one of the known flow types.
func (f FlowID) Valid() bool {
	_, ok := flowNames[f]
	return ok
}

// Name returns the short route name for the flow ("inbound", "batch", ...).
func (f FlowID) Name() string {
	return flowNames[f]
}

// ParseFlow accepts either a FlowID ("FLOW-003") or a short name ("inbound").
func ParseFlow(s string) (FlowID, bool) {
	s = strings.TrimSpace(s)
	if f := FlowID(strings.ToUpper(s)); f.Valid() {
		return f, true
	}
	for id, name := range flowNames {
		if strings.EqualFold(name, s) {
			return id, true
		}
	}
	return "", false
}

// Envelope holds the fields shared by every flow instance.
type Envelope struct {
	FlowID     FlowID    `json:"flowId"`
	InstanceID string    `json:"instanceId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Revision is the per-instance optimistic version: 1 on creation,
	// incremented by every persisted mutation.
	Revision int64 `json:"revision"`
}

// Meta returns the envelope itself so concrete instances expose it through
// the Instance interface.
func (e *Envelope) Meta() *Envelope { return e }

// Instance is the sealed sum type over all flow instances. The concrete
// types are *SkuInstance, *PurchaseOrderInstance, *ReceiptInstance,
// *BatchInstance and *ModuleInstance.
type Instance interface {
	Meta() *Envelope
	Flow() FlowID
	StateName() string
	// Clone returns a deep copy that shares no mutable memory with the receiver.
	Clone() Instance

	sealed()
}

// Stamp is an audit actor/time pair.
type Stamp struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// NewStamp builds a stamp for the given actor.
func NewStamp(a Actor, at time.Time) *Stamp {
	return &Stamp{By: a.Label(), At: at}
}

func cloneStamp(s *Stamp) *Stamp {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStamps(in []Stamp) []Stamp {
	if in == nil {
		return nil
	}
	out := make([]Stamp, len(in))
	copy(out, in)
	return out
}
