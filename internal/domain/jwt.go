package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Staff roles allowed to manage catalog media
const (
	RoleAdmin          = "admin"
	RoleCatalogManager = "catalog_manager"
)

// StaffClaims represents the JWT claims issued to back-office staff
type StaffClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry at least one of roles
func (c *StaffClaims) HasRole(roles ...string) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
