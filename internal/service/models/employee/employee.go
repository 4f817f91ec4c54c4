package employee

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the back-office role of an employee.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSupport Role = "support"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleManager, RoleSupport:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}

// CanMutateOrders reports whether the role may change status or tracking.
func (r Role) CanMutateOrders() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanReadOrders reports whether the role may view orders and history.
func (r Role) CanReadOrders() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleSupport
}

// Employee is a back-office account.
type Employee struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

func (e *Employee) Principal() Principal {
	return Principal{ID: e.ID, Name: e.Name, Role: e.Role}
}
