package domain

import "fmt"

// Role is the closed set of user roles. The zero value is not a valid role.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleAdmin
)

// Dashboard is where a user lands after login.
type Dashboard string

const (
	DashboardAdmin    Dashboard = "/dashboard/admin"
	DashboardCustomer Dashboard = "/dashboard/customer"
)

// ErrUnknownRole is returned for any role outside the closed set.
type ErrUnknownRole struct {
	Value string
}

func (e ErrUnknownRole) Error() string {
	return fmt.Sprintf("unknown role %q", e.Value)
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "customer":
		return RoleCustomer, nil
	default:
		return 0, ErrUnknownRole{Value: s}
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleCustomer:
		return "customer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer:
		return true
	default:
		return false
	}
}

func (r Role) Dashboard() (Dashboard, error) {
	switch r {
	case RoleAdmin:
		return DashboardAdmin, nil
	case RoleCustomer:
		return DashboardCustomer, nil
	default:
		return "", ErrUnknownRole{Value: r.String()}
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole{Value: r.String()}
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Photo string `json:"photo,omitempty"`
}
