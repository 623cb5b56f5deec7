package roles

// Role is a closed set ordered user < admin < super_admin.
type Role int

const (
	Unknown Role = iota
	User
	Admin
	SuperAdmin
)

func Parse(s string) Role {
	switch s {
	case "user":
		return User
	case "admin":
		return Admin
	case "super_admin":
		return SuperAdmin
	default:
		return Unknown
	}
}

func (r Role) String() string {
	switch r {
	case User:
		return "user"
	case Admin:
		return "admin"
	case SuperAdmin:
		return "super_admin"
	default:
		return "unknown"
	}
}

// AtLeast reports whether r carries at least min's privileges. Unknown roles
// never satisfy any requirement.
func (r Role) AtLeast(min Role) bool {
	if r == Unknown || min == Unknown {
		return false
	}
	return r >= min
}
