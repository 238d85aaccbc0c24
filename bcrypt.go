package identity

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyPassword is returned when trying to hash an empty string.
var ErrNoEmptyPassword = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match
// the stored hash, or when the stored hash is malformed.
var ErrMismatchedHashAndPassword = errors.New("password does not match")

// HashPassword will generate a salted password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password against
// the hashed password. A malformed stored hash fails the same way a wrong
// password does.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// RandomPasswordHash returns an unusable placeholder hash for accounts that
// have not set a password yet. No input verifies against it.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
