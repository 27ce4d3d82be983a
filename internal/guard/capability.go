// Package guard decides whether an operator action is currently permitted.
//
// Stage guards (S1ActionState ... S5ActionState) combine the actor's role
// with a stage context; record guards (SkuItemAction, ...) combine it with
// the status of one record. Every guard is pure and returns an
// api.ActionState whose Reason is set whenever the action is disabled.
package guard

import (
	"strings"

	"github.com/petrijr/packflow/pkg/api"
)

// Capabilities is the set of duties a role may perform.
type Capabilities uint16

const (
	CapEngineering Capabilities = 1 << iota
	CapManagement
	CapProcurement
	CapStores
	CapQA
	CapSupervisor
	CapOperator
	CapPlanner

	// CapOverride lifts stage blockers.
	CapOverride
)

// CapAll is what the administrative role resolves to.
const CapAll = CapEngineering | CapManagement | CapProcurement | CapStores |
	CapQA | CapSupervisor | CapOperator | CapPlanner | CapOverride

var duties = map[api.Role]Capabilities{
	api.RoleManagement:  CapManagement,
	api.RoleEngineering: CapEngineering,
	api.RoleProcurement: CapProcurement,
	api.RoleStores:      CapStores,
	api.RoleQAEngineer:  CapQA,
	api.RoleSupervisor:  CapSupervisor,
	api.RoleOperator:    CapOperator,
	api.RolePlanner:     CapPlanner,
}

// Resolve maps a role to its capability set. Unknown roles resolve to none.
func Resolve(role api.Role) Capabilities {
	if role == api.RoleSystemAdmin {
		return CapAll
	}
	return duties[role]
}

// Any reports whether c shares at least one capability with want.
func (c Capabilities) Any(want Capabilities) bool { return c&want != 0 }

// Overrides reports whether c lifts stage blockers.
func (c Capabilities) Overrides() bool { return c&CapOverride != 0 }

var capNames = []struct {
	c    Capabilities
	name string
}{
	{CapEngineering, "engineering"},
	{CapManagement, "management"},
	{CapProcurement, "procurement"},
	{CapStores, "stores"},
	{CapQA, "qa"},
	{CapSupervisor, "supervisor"},
	{CapOperator, "operator"},
	{CapPlanner, "planner"},
	{CapOverride, "override"},
}

func (c Capabilities) String() string {
	var parts []string
	for _, n := range capNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
