package enums

import (
	"fmt"
	"strings"
)

// AdminRole is the back-office role carried in admin bearer tokens.
type AdminRole string

const (
	AdminRoleAdmin    AdminRole = "admin"
	AdminRoleOperator AdminRole = "operator"
)

var validAdminRoles = []AdminRole{
	AdminRoleAdmin,
	AdminRoleOperator,
}

// IsValid reports whether the value is a known AdminRole.
func (r AdminRole) IsValid() bool {
	for _, candidate := range validAdminRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdminRole converts raw input into an AdminRole.
func ParseAdminRole(value string) (AdminRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validAdminRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin role %q", value)
}
