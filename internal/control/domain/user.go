package domain

import (
	"fmt"
	"strings"
)

// User represents an account the filtering policy applies to.
//
// Notes:
//   - Username is unique across all users; the store enforces this.
//   - ID is assigned once by the store and never changes.
//   - PasswordHash is a bcrypt hash set at the store boundary. Credential
//     verification itself is handled by the authentication layer, not here.
//     The field serializes as "password" to stay compatible with existing
//     stored data.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
	IsAdmin      bool   `json:"isAdmin"`
	FullName     string `json:"fullName"`
}

// NewUser constructs a User and validates its fields.
func NewUser(id int64, username, passwordHash string, isAdmin bool, fullName string) (User, error) {
	u := User{
		ID:           id,
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		FullName:     strings.TrimSpace(fullName),
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// Validate checks the User for required fields.
func (u User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if u.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	return nil
}

// Sanitized returns a copy of the user with the credential hash removed.
// Outward-facing surfaces must never expose the hash.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
