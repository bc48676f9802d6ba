package auth

// Role grades what a member of a property-management team may do.
// Viewers browse buildings, meters and reading history, operators
// additionally record readings and run scans and imports, admins may
// also delete meters, units and buildings.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Roles are strictly ordered; a higher rank includes everything below.
var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// Known reports whether the role is one this service issues. Tokens
// carrying any other role string are rejected rather than downgraded.
func (r Role) Known() bool {
	_, ok := roleRanks[r]
	return ok
}

// Allows reports whether the role grants at least the required level.
// An unknown role allows nothing.
func (r Role) Allows(required Role) bool {
	rank, ok := roleRanks[r]
	if !ok {
		return false
	}
	return rank >= roleRanks[required]
}
