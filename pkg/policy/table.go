package policy

import "github.com/residenciauni/residencia/pkg/identity"

// AllowSet holds the grants for one module
type AllowSet struct {
	// Create lists roles that may create records
	Create []identity.Role
	// ManageAny lists roles that may edit, delete, or change status of any record
	ManageAny []identity.Role
	// ManageOwn lists roles that may manage records they own, matched by Ownership
	ManageOwn []identity.Role
	Ownership Ownership
	// LegacyUnowned lets ManageOwn roles manage records with no recorded author
	LegacyUnowned bool
	// FloorPinned lists roles whose creates are pinned to their own floor
	FloorPinned []identity.Role
	// StrictFloorScope rejects pinned creates that ask for a non-floor scope
	// instead of rewriting them
	StrictFloorScope bool
}

// Table maps each module to its allow-set
type Table map[Module]AllowSet

// DefaultTable returns the residence's built-in permission table
func DefaultTable() Table {
	return Table{
		ModuleNews: {
			Create: []identity.Role{
				identity.RoleAdmin,
				identity.RolePresident,
				identity.RoleSecretaryGeneral,
				identity.RoleRepresentative,
			},
			ManageAny: []identity.Role{
				identity.RoleAdmin,
				identity.RolePresident,
				identity.RoleSecretaryGeneral,
			},
			ManageOwn:     []identity.Role{identity.RoleRepresentative},
			Ownership:     OwnAuthored,
			LegacyUnowned: true,
			FloorPinned:   []identity.Role{identity.RoleRepresentative},
		},
		ModuleAssemblies: {
			Create: []identity.Role{
				identity.RoleAdmin,
				identity.RolePresident,
				identity.RoleSecretaryGeneral,
				identity.RoleRepresentative,
			},
			ManageAny: []identity.Role{
				identity.RoleAdmin,
				identity.RolePresident,
				identity.RoleSecretaryGeneral,
			},
			ManageOwn:        []identity.Role{identity.RoleRepresentative},
			Ownership:        OwnFloor,
			FloorPinned:      []identity.Role{identity.RoleRepresentative},
			StrictFloorScope: true,
		},
		ModuleDisciplinary: {
			Create: []identity.Role{
				identity.RoleAdmin,
				identity.RoleGeneralAuditor,
				identity.RoleRepresentative,
				identity.RoleFloorAuditor,
				identity.RolePresident,
			},
			ManageAny: []identity.Role{
				identity.RoleAdmin,
				identity.RoleGeneralAuditor,
				identity.RolePresident,
			},
			ManageOwn:     []identity.Role{identity.RoleRepresentative, identity.RoleFloorAuditor},
			Ownership:     OwnAuthored,
			LegacyUnowned: true,
		},
		ModuleReports: {
			Create: []identity.Role{
				identity.RoleAdmin,
				identity.RoleGeneralAuditor,
				identity.RoleRepresentative,
				identity.RoleFloorAuditor,
			},
			ManageAny: []identity.Role{
				identity.RoleAdmin,
				identity.RoleGeneralAuditor,
			},
			ManageOwn:     []identity.Role{identity.RoleRepresentative, identity.RoleFloorAuditor},
			Ownership:     OwnAuthored,
			LegacyUnowned: true,
		},
	}
}

func contains(roles []identity.Role, r identity.Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}
