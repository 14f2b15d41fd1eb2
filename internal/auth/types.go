package auth

import (
	"errors"
	"net/mail"
	"time"
)

// Role represents an authorisation tier within a household.
type Role string

const (
	// RoleGuest is a non-member bound to an accepted access grant.
	// Everything a guest may do is decided by their grant's capability set.
	RoleGuest Role = "guest"

	// RoleMember is a household member: day-to-day app usage, no vault
	// administration.
	RoleMember Role = "member"

	// RoleOwner administers the household: vault PIN and secrets, guest
	// invitations, audit access.
	RoleOwner Role = "owner"
)

// ValidRoles is the set of valid account roles.
var ValidRoles = []Role{RoleGuest, RoleMember, RoleOwner}

// IsValidRole returns true if the role is a valid account role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// IsValidEmail checks that an address parses per RFC 5322.
func IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// Household represents a single household tenant.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents an authenticated account bound to one household.
type User struct {
	ID           string    `json:"id"`
	HouseholdID  string    `json:"household_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("email already registered")
	ErrHouseholdNotFound  = errors.New("household not found")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrRateLimited        = errors.New("too many attempts")
)
