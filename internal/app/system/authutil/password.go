// internal/app/system/authutil/password.go
// Package authutil holds the credential rules shared by registration, login
// and the operator CLI.
package authutil

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	BcryptCost        = 12

	MaxUsernameLength = 80
)

var (
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters.")
	ErrPasswordTooLong  = errors.New("Password must be less than 128 characters.")
	ErrPasswordCommon   = errors.New("This password is too common. Please choose a different one.")

	ErrUsernameTooLong = errors.New("Username must be at most 80 characters.")
	ErrUsernameSpaces  = errors.New("Username cannot contain spaces.")
)

// Blocked passwords, compared case-insensitively.
var commonPasswords = map[string]bool{
	"123456": true, "1234567": true, "12345678": true, "123456789": true,
	"password": true, "password1": true, "qwerty": true, "qwerty123": true,
	"abc123": true, "abcdef": true, "111111": true, "000000": true,
	"123123": true, "654321": true, "iloveyou": true, "monkey": true,
	"dragon": true, "master": true, "letmein": true, "welcome": true,
	"login": true, "admin": true, "princess": true, "sunshine": true,
	"football": true, "baseball": true, "blog": true, "blogger": true,
}

// cost is the bcrypt work factor. Tests lower it with SetCost.
var (
	costMu sync.RWMutex
	cost   = BcryptCost
)

// SetCost changes the bcrypt work factor and returns the previous value.
func SetCost(c int) int {
	costMu.Lock()
	defer costMu.Unlock()
	prev := cost
	cost = c
	return prev
}

// PasswordRules describes the password rules for API error payloads.
func PasswordRules() string {
	return "Password must be 6 to 128 characters and cannot be a common password like \"123456\" or \"password\"."
}

// ValidatePassword returns nil when password is acceptable for a new account.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	case commonPasswords[strings.ToLower(password)]:
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	costMu.RLock()
	c := cost
	costMu.RUnlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// DummyCheck burns the same time as a real CheckPassword. Login calls it when
// the username is unknown so response timing does not reveal which accounts exist.
func DummyCheck(password string) {
	dummyOnce.Do(func() {
		h, err := HashPassword("not-a-real-password")
		if err == nil {
			dummyHash = []byte(h)
		}
	})
	if dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	}
}

// ValidateUsername checks the shape of a login handle.
// Emptiness is reported by the caller as a missing field.
func ValidateUsername(username string) error {
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return ErrUsernameSpaces
	}
	return nil
}
