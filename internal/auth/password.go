// Package auth issues and verifies access tokens and decides what a
// token's scope allows.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/cityteam/stats-sub000/internal/core"
)

func HashPassword(s string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// ComparePassword returns core.ErrUnauthorized when plain does not match hashed.
func ComparePassword(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
		return fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}
	return err
}
