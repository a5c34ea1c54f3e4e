package policy

import (
	"time"

	"github.com/residenciauni/residencia/pkg/identity"
)

// Module identifies one of the managed record collections
type Module string

const (
	ModuleNews         Module = "news"
	ModuleAssemblies   Module = "assemblies"
	ModuleDisciplinary Module = "disciplinary"
	ModuleReports      Module = "reports"
)

// Modules returns every module in display order
func Modules() []Module {
	return []Module{ModuleNews, ModuleAssemblies, ModuleDisciplinary, ModuleReports}
}

// Action is an operation the predicate can be asked about
type Action string

const (
	ActionView         Action = "view"
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionChangeStatus Action = "change_status"
)

// Scope is the audience of a record
type Scope string

const (
	ScopeNone    Scope = ""
	ScopeGeneral Scope = "general"
	ScopeFloor   Scope = "floor"
)

// ParseScope maps a wire value to a Scope
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeGeneral:
		return ScopeGeneral
	case ScopeFloor:
		return ScopeFloor
	default:
		return ScopeNone
	}
}

// Author identifies the creator of a record
type Author struct {
	ID   string
	Role identity.Role
}

// Record is the view of a managed record the predicate needs.
// Floor is only meaningful when Scope is ScopeFloor.
type Record struct {
	ID        string
	Scope     Scope
	Floor     *int
	CreatedBy *Author
}

// Unowned reports whether the record has no known author
func (r Record) Unowned() bool {
	return r.CreatedBy == nil || r.CreatedBy.ID == ""
}

// Ownership selects how a "manage own" grant is matched against a record
type Ownership string

const (
	OwnAuthored Ownership = "authored" // record.CreatedBy.ID == identity.UserID
	OwnFloor    Ownership = "floor"    // floor-scoped record on the identity's floor
)

// Decision is the outcome of a permission check
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Rule      string    `json:"rule,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
