// Package credential checks submitted passwords against stored bcrypt hashes.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned by Hash for an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// Verify reports whether password matches the stored bcrypt hash. The
// comparison is constant time; a stored value that is not a bcrypt hash never
// matches, even if it equals the submitted password.
func Verify(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// Hash returns a bcrypt hash of password suitable for the users table.
func Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
