package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 8

// ErrPasswordTooLong is returned for inputs bcrypt would silently truncate.
var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// HashPassword returns a bcrypt hash of plain at the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > 72 {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// placeholderHash is compared against when a login names an unknown user so
// that both paths cost one bcrypt comparison.
var placeholderHash, _ = bcrypt.GenerateFromPassword([]byte("dragonrise-placeholder"), bcrypt.DefaultCost)

// SpendVerify performs a throwaway comparison.
func SpendVerify(plain string) {
	_ = bcrypt.CompareHashAndPassword(placeholderHash, []byte(plain))
}
