// Package identity holds the closed set of user roles and the authenticated
// actor passed explicitly into every workflow operation.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleLecturer    Role = "Lecturer"
	RoleCoordinator Role = "Coordinator"
	RoleManager     Role = "Manager"
	RoleHRManager   Role = "HRManager"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every valid role in display order.
func Roles() []Role {
	return []Role{RoleLecturer, RoleCoordinator, RoleManager, RoleHRManager}
}

// ParseRole converts boundary input into a Role. Matching is exact.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(value))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleLecturer, RoleCoordinator, RoleManager, RoleHRManager:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   Role
	Name   string
}

func (a Actor) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}
