package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid username or password")

// Credentials holds the configured admin login. When Hash is set it takes
// precedence over the plain Password.
type Credentials struct {
	Username string
	Password string
	Hash     string // bcrypt
}

// Verify checks a login attempt against the configured credentials using
// constant-time comparison for the username and either bcrypt or a
// constant-time compare for the password.
func (c Credentials) Verify(username, password string) error {
	if c.Username == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1

	var passOK bool
	switch {
	case c.Hash != "":
		passOK = bcrypt.CompareHashAndPassword([]byte(c.Hash), []byte(password)) == nil
	case c.Password != "":
		passOK = subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
	default:
		return ErrBadCredentials
	}

	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
