package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordBytes = 8
	// MaxPasswordBytes is bcrypt's input limit; longer inputs are rejected rather than truncated.
	MaxPasswordBytes = 72
)

// PasswordCost is lowered by tests to keep hashing fast.
var PasswordCost = bcrypt.DefaultCost

var ErrPasswordLength = errors.New("password must be 8 to 72 bytes long")

func ValidatePassword(password string) error {
	if len(password) < MinPasswordBytes || len(password) > MaxPasswordBytes {
		return ErrPasswordLength
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(b), err
}

// CheckPassword returns nil only when password matches hash.
func CheckPassword(hash, password string) error {
	if len(password) > MaxPasswordBytes {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
