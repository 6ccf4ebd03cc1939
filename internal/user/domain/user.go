package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account row. PasswordHash is never serialized.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	Role         string
	CreatedAt    time.Time
}

// Validate returns the first missing required field.
func (u *User) Validate() error {
	switch {
	case strings.TrimSpace(u.Username) == "":
		return errors.New("username is required")
	case strings.TrimSpace(u.Email) == "":
		return errors.New("email is required")
	case u.PasswordHash == "":
		return errors.New("password hash is required")
	case u.Role == "":
		return errors.New("role is required")
	}
	return nil
}

// Credentials is the subset of a user needed to sign in.
type Credentials struct {
	UserID       string
	PasswordHash string `json:"-"`
	Role         string
}
