// Package domain contains the core business entities for Meridian Bank.
// These are pure Go structs with no infrastructure dependencies, representing
// the fundamental concepts of the banking back office.
package domain

import (
	"time"
)

// Role represents the access role of a user.
type Role string

const (
	// RoleRegular is a normal customer. Regular users can only see and
	// operate on accounts they own.
	RoleRegular Role = "REGULAR"

	// RoleEmployee is a bank employee. Employees can see and operate on
	// every account, and may open accounts on behalf of other users.
	RoleEmployee Role = "EMPLOYEE"
)

// User represents a registered user in the system.
// Users own accounts and authenticate with username + password.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	// Constraints: 3-255 characters.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines what the user may access.
	Role Role `json:"role"`

	// IsActive indicates whether the user account is active.
	// Users are never hard-deleted; deletion clears this flag.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(username, email, passwordHash string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsEmployee returns true if the user has the employee role.
func (u *User) IsEmployee() bool {
	return u.Role == RoleEmployee
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// CanAccess reports whether the user may act on the given account.
// Employees may access any account; regular users only their own.
// The bank's clearing account is excluded for everyone.
func (u *User) CanAccess(acct *Account) bool {
	if acct.IsClearing() {
		return false
	}
	if u.IsEmployee() {
		return true
	}
	return acct.UserID == u.ID
}
