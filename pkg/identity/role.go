package identity

import "strings"

// Role is the single organizational role held by an authenticated user
type Role string

const (
	RoleAdmin            Role = "admin"
	RolePresident        Role = "president"
	RoleVicePresident    Role = "vice_president"
	RoleSecretaryGeneral Role = "secretary_general"
	RoleRepresentative   Role = "representative"  // Floor representative
	RoleFloorAuditor     Role = "floor_auditor"   // Auditor for a single floor
	RoleGeneralAuditor   Role = "general_auditor" // Building-wide auditor
	RoleResident         Role = "resident"
)

// AllRoles returns every known role in declaration order
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RolePresident,
		RoleVicePresident,
		RoleSecretaryGeneral,
		RoleRepresentative,
		RoleFloorAuditor,
		RoleGeneralAuditor,
		RoleResident,
	}
}

// ParseRole maps a backend role string to a Role.
// Unknown values return the empty Role, which never grants anything.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r
	}
	return ""
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// String returns the role name
func (r Role) String() string {
	if r == "" {
		return "unknown"
	}
	return string(r)
}

// DisplayName returns the Spanish label used in user-facing output
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RolePresident:
		return "Presidente"
	case RoleVicePresident:
		return "Vicepresidente"
	case RoleSecretaryGeneral:
		return "Secretario General"
	case RoleRepresentative:
		return "Representante"
	case RoleFloorAuditor:
		return "Auditor de Piso"
	case RoleGeneralAuditor:
		return "Auditor General"
	case RoleResident:
		return "Residente"
	default:
		return "Desconocido"
	}
}
