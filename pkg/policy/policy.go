// Package policy implements the role-based authorization predicate that
// gates every mutating control of the CRUD modules. The rules live in a
// Table of per-module allow-sets; the predicate itself is pure and does
// no I/O. Unknown roles and missing records fail closed. Reads fail open:
// any record the backend returned may be viewed.
package policy

import (
	"fmt"
	"time"

	"github.com/residenciauni/residencia/pkg/identity"
)

// Checker answers permission questions for an identity
type Checker interface {
	CanCreate(id identity.Identity, module Module, desired Scope) bool
	CanManage(id identity.Identity, module Module, rec *Record) bool
	CanView(id identity.Identity, module Module, rec *Record) bool
	Decide(id identity.Identity, module Module, action Action, rec *Record) Decision
	CreateScope(id identity.Identity, module Module, desired Scope, desiredFloor *int) (Scope, *int, bool)
}

// Option configures a Policy
type Option func(*Policy)

// WithTable replaces the built-in permission table
func WithTable(t Table) Option {
	return func(p *Policy) {
		p.table = t
	}
}

// WithoutLegacyUnowned stops own-grant roles from managing records that have no author
func WithoutLegacyUnowned() Option {
	return func(p *Policy) {
		p.legacyUnowned = false
	}
}

// Policy is the table-driven Checker
type Policy struct {
	table         Table
	legacyUnowned bool
	now           func() time.Time
}

// New creates a Policy backed by DefaultTable unless overridden
func New(opts ...Option) *Policy {
	p := &Policy{
		table:         DefaultTable(),
		legacyUnowned: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanCreate reports whether id may create a record with the desired scope
func (p *Policy) CanCreate(id identity.Identity, module Module, desired Scope) bool {
	return p.decideCreate(id, module, desired).Allowed
}

// CanManage reports whether id may edit, delete, or change the status of rec
func (p *Policy) CanManage(id identity.Identity, module Module, rec *Record) bool {
	return p.decideManage(id, module, rec).Allowed
}

// CanView reports whether id may read rec. Scoping reads is the backend's job.
func (p *Policy) CanView(id identity.Identity, module Module, rec *Record) bool {
	return rec != nil
}

// Decide evaluates any action and explains the result.
// For ActionCreate the desired scope is taken from rec, when given.
func (p *Policy) Decide(id identity.Identity, module Module, action Action, rec *Record) Decision {
	switch action {
	case ActionView:
		if rec == nil {
			return p.deny("no record")
		}
		return p.allow("reads are not restricted", "view")
	case ActionCreate:
		desired := ScopeNone
		if rec != nil {
			desired = rec.Scope
		}
		return p.decideCreate(id, module, desired)
	case ActionEdit, ActionDelete, ActionChangeStatus:
		return p.decideManage(id, module, rec)
	default:
		return p.deny(fmt.Sprintf("unknown action %q", action))
	}
}

// CreateScope returns the scope and floor a create payload must carry.
// Floor-pinned roles always get ScopeFloor and their own floor; other
// roles keep what they asked for. ok is false when the create is not allowed.
func (p *Policy) CreateScope(id identity.Identity, module Module, desired Scope, desiredFloor *int) (Scope, *int, bool) {
	if !p.CanCreate(id, module, desired) {
		return ScopeNone, nil, false
	}
	set := p.table[module]
	if contains(set.FloorPinned, id.Role) {
		floor, _ := id.FloorNumber()
		return ScopeFloor, identity.IntPtr(floor), true
	}
	if desired != ScopeFloor {
		return desired, nil, true
	}
	if desiredFloor == nil {
		return desired, nil, true
	}
	return desired, identity.IntPtr(*desiredFloor), true
}

func (p *Policy) decideCreate(id identity.Identity, module Module, desired Scope) Decision {
	if !id.Role.Valid() {
		return p.deny("unknown role")
	}
	set, ok := p.table[module]
	if !ok {
		return p.deny(fmt.Sprintf("unknown module %q", module))
	}
	if !contains(set.Create, id.Role) {
		return p.deny(fmt.Sprintf("role %s cannot create %s", id.Role, module))
	}
	if contains(set.FloorPinned, id.Role) {
		if !id.HasFloor() {
			return p.deny(fmt.Sprintf("role %s has no floor assigned", id.Role))
		}
		if set.StrictFloorScope && desired != ScopeNone && desired != ScopeFloor {
			return p.deny(fmt.Sprintf("role %s may only create floor-scoped %s", id.Role, module))
		}
		return p.allow(fmt.Sprintf("role %s creates on own floor", id.Role), "create:floor-pinned")
	}
	return p.allow(fmt.Sprintf("role %s can create %s", id.Role, module), "create")
}

func (p *Policy) decideManage(id identity.Identity, module Module, rec *Record) Decision {
	if rec == nil {
		return p.deny("no record")
	}
	if !id.Role.Valid() {
		return p.deny("unknown role")
	}
	set, ok := p.table[module]
	if !ok {
		return p.deny(fmt.Sprintf("unknown module %q", module))
	}
	if contains(set.ManageAny, id.Role) {
		return p.allow(fmt.Sprintf("role %s manages any %s", id.Role, module), "manage:any")
	}
	if !contains(set.ManageOwn, id.Role) {
		return p.deny(fmt.Sprintf("role %s cannot manage %s", id.Role, module))
	}

	switch set.Ownership {
	case OwnAuthored:
		if rec.Unowned() {
			if set.LegacyUnowned && p.legacyUnowned {
				return p.allow("record has no author", "manage:legacy-unowned")
			}
			return p.deny("record has no author")
		}
		if id.UserID != "" && rec.CreatedBy.ID == id.UserID {
			return p.allow("identity authored the record", "manage:own-authored")
		}
		return p.deny("record authored by someone else")
	case OwnFloor:
		floor, hasFloor := id.FloorNumber()
		if rec.Scope != ScopeFloor || rec.Floor == nil || !hasFloor {
			return p.deny("record is not on the identity's floor")
		}
		if *rec.Floor != floor {
			return p.deny(fmt.Sprintf("record belongs to floor %d", *rec.Floor))
		}
		return p.allow("record is on the identity's floor", "manage:own-floor")
	default:
		return p.deny(fmt.Sprintf("unknown ownership rule %q", set.Ownership))
	}
}

func (p *Policy) allow(reason, rule string) Decision {
	return Decision{Allowed: true, Reason: reason, Rule: rule, CheckedAt: p.now()}
}

func (p *Policy) deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason, CheckedAt: p.now()}
}
