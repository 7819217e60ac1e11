// internal/middleware/helpers.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GetIdentity returns the authenticated account email
func GetIdentity(c *gin.Context) (string, bool) {
	identity := c.GetString(ctxIdentity)
	return identity, identity != ""
}

// MustGetIdentity gets the identity from context or panics
func MustGetIdentity(c *gin.Context) string {
	identity, ok := GetIdentity(c)
	if !ok {
		panic("identity not found in context")
	}
	return identity
}

// GetJTI gets the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	jti := c.GetString(ctxJTI)
	return jti, jti != ""
}

// MustGetJTI gets JTI from context or panics
func MustGetJTI(c *gin.Context) string {
	jti, ok := GetJTI(c)
	if !ok {
		panic("jti not found in context")
	}
	return jti
}

// GetTokenExpiry returns when the current token expires
func GetTokenExpiry(c *gin.Context) time.Time {
	return c.GetTime(ctxExpiresAt)
}

// GetRole gets user role from context
func GetRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetIdentity(c)
	return ok
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == "admin"
}
