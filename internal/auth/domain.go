// Package auth resolves credentials into principals. Tokens are opaque,
// stored in Redis with a sliding TTL; passwords are bcrypt hashes.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// User represents an account that can sign in.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal converts the user into the value domain services consume.
func (u User) Principal() shared.Principal {
	return shared.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

// CreateUserInput captures account creation input.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     shared.Role
}

// Validate ensures correctness.
func (in CreateUserInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return errors.New("auth: email required")
	}
	if len(in.Password) < 8 {
		return errors.New("auth: password must be at least 8 characters")
	}
	if !in.Role.Valid() {
		return errors.New("auth: role must be one of admin, manager, client")
	}
	return nil
}
