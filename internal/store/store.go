package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no identity exists for a login.
var ErrUserNotFound = errors.New("user not found")

// User is a registered identity.
type User struct {
	Login     string
	Password  string
	CreatedAt time.Time
}

// UserStore handles identity persistence.
type UserStore interface {
	// CreateUser registers a new login with its password.
	CreateUser(ctx context.Context, login, password string) (*User, error)

	// GetUserByLogin retrieves a user by login.
	// Returns an error wrapping ErrUserNotFound when the login is unknown.
	GetUserByLogin(ctx context.Context, login string) (*User, error)

	// CountUsers returns the number of registered identities.
	CountUsers(ctx context.Context) (int, error)
}

// Store aggregates all store interfaces.
type Store interface {
	UserStore

	// Close releases underlying resources.
	Close() error
}
