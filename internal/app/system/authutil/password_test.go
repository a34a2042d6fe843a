package authutil

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	SetCost(bcrypt.MinCost)
	m.Run()
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid short", "abc123x", nil},
		{"valid default admin", "admin123", nil},
		{"valid long", strings.Repeat("a", 128), nil},
		{"valid with spaces", "my secret password", nil},

		{"too short 5 chars", "abcde", ErrPasswordTooShort},
		{"too short empty", "", ErrPasswordTooShort},

		{"too long", strings.Repeat("a", 129), ErrPasswordTooLong},

		{"common 123456", "123456", ErrPasswordCommon},
		{"common PASSWORD uppercase", "PASSWORD", ErrPasswordCommon},
		{"common blogger", "Blogger", ErrPasswordCommon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePassword(tt.password); err != tt.wantErr {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashPassword_CheckPassword(t *testing.T) {
	const password = "mySecurePassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == password {
		t.Fatalf("HashPassword() = %q, want a bcrypt hash", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("HashPassword() = %q, want bcrypt prefix", hash)
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword() should accept the original password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword() should reject a wrong password")
	}
	if CheckPassword(password, "") {
		t.Error("CheckPassword() should reject an empty hash")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h1, _ := HashPassword("same-password")
	h2, _ := HashPassword("same-password")
	if h1 == h2 {
		t.Error("HashPassword() should salt each hash")
	}
}

func TestSetCost(t *testing.T) {
	prev := SetCost(bcrypt.MinCost + 1)
	defer SetCost(prev)

	hash, err := HashPassword("cost-check")
	if err != nil {
		t.Fatal(err)
	}
	got, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatal(err)
	}
	if got != bcrypt.MinCost+1 {
		t.Errorf("cost = %d, want %d", got, bcrypt.MinCost+1)
	}
}

func TestDummyCheck(t *testing.T) {
	// Must not panic and must be callable repeatedly.
	DummyCheck("anything")
	DummyCheck("")
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		wantErr  error
	}{
		{"alice", nil},
		{"alice_b-1", nil},
		{"has space", ErrUsernameSpaces},
		{"tab\there", ErrUsernameSpaces},
		{strings.Repeat("u", 81), ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if err := ValidateUsername(tt.username); err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.username, err, tt.wantErr)
			}
		})
	}
}
