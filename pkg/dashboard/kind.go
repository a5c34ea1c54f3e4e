package dashboard

import "github.com/residenciauni/residencia/pkg/identity"

// Kind selects which dashboard a role lands on after login
type Kind string

const (
	KindAdmin          Kind = "admin"
	KindResident       Kind = "resident"
	KindRepresentative Kind = "representative"
	KindPresident      Kind = "president"
	KindAuditor        Kind = "auditor"
)

// KindFor maps a role to its dashboard. Unknown roles get the resident view.
func KindFor(role identity.Role) Kind {
	switch role {
	case identity.RoleAdmin:
		return KindAdmin
	case identity.RoleRepresentative:
		return KindRepresentative
	case identity.RolePresident, identity.RoleVicePresident:
		return KindPresident
	case identity.RoleFloorAuditor, identity.RoleGeneralAuditor:
		return KindAuditor
	default:
		return KindResident
	}
}

// Title is the heading shown on the dashboard
func (k Kind) Title() string {
	switch k {
	case KindAdmin:
		return "Panel de administración"
	case KindRepresentative:
		return "Panel del representante"
	case KindPresident:
		return "Panel de presidencia"
	case KindAuditor:
		return "Panel de auditoría"
	default:
		return "Panel del residente"
	}
}
