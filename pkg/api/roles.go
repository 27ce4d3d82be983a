package api

// Role is the acting operator's role. It is always passed explicitly to
// guards and handlers.
type Role string

const (
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
	RoleManagement  Role = "MANAGEMENT"
	RoleEngineering Role = "ENGINEERING"
	RoleProcurement Role = "PROCUREMENT"
	RoleStores      Role = "STORES"
	RoleQAEngineer  Role = "QA_ENGINEER"
	RoleSupervisor  Role = "SUPERVISOR"
	RoleOperator    Role = "OPERATOR"
	RolePlanner     Role = "PLANNER"
)

// Roles lists every known role.
var Roles = []Role{
	RoleSystemAdmin, RoleManagement, RoleEngineering, RoleProcurement, RoleStores,
	RoleQAEngineer, RoleSupervisor, RoleOperator, RolePlanner,
}

func (r Role) Valid() bool { return contains(Roles, r) }

// Actor identifies who performs an operation.
type Actor struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

// Label is the value recorded in audit stamps.
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return string(a.Role)
}
