// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess = "access"
)

// Claims represents the JWT claims. Subject is the account email.
type Claims struct {
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	SessionPurpose string `json:"session_purpose"`
	jwt.RegisteredClaims
}

// IsAdmin checks if the token carries the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}
