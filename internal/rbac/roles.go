package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleViewer = "viewer"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnown reports whether role is one the view API issues tokens for.
func IsKnown(role string) bool {
	switch role {
	case RoleViewer, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}
