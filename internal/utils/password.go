package utils

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for seeded accounts.
const MinPasswordLength = 8

// ErrWeakPassword is returned by CheckPassword.
var ErrWeakPassword = errors.New("password too weak")

// CheckPassword enforces the length policy.  bcrypt ignores input past 72
// bytes, so longer passwords are rejected rather than silently cut.
func CheckPassword(plain string) error {
	if n := utf8.RuneCountInString(plain); n < MinPasswordLength {
		return fmt.Errorf("%w: %d characters, need at least %d", ErrWeakPassword, n, MinPasswordLength)
	}
	if len(plain) > 72 {
		return fmt.Errorf("%w: longer than 72 bytes", ErrWeakPassword)
	}
	return nil
}

// HashPassword checks plain against the policy and returns its bcrypt hash.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if err := CheckPassword(plain); err != nil {
		return "", err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.  An empty or malformed
// hash never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
