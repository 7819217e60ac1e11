// internal/domain/auth/entity.go
package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// MinPasswordLength matches the sign-up form.
const MinPasswordLength = 6

// Identity is an account. Email is the key that subscription records are stored under.
type Identity struct {
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"password_hash" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Info strips the password hash for responses.
func (i *Identity) Info() UserInfo {
	return UserInfo{
		Email: i.Email,
		Name:  i.Name,
		Role:  i.Role,
	}
}

// NormalizeEmail is the canonical identity form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
