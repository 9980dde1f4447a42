package ledger

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCompany  Role = "COMPANY"
	RoleDirector Role = "DIRECTOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompany, RoleDirector:
		return true
	}
	return false
}

// Principal is the resolved caller. The ledger never authenticates, it only authorizes.
type Principal struct {
	ID   int
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
