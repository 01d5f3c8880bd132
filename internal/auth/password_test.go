// ABOUTME: Unit tests for password hashing and reset code helpers
// ABOUTME: Covers round trips, wrong passwords, and code format

package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery" {
		t.Error("hash equals plaintext")
	}

	if err := CheckPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("CheckPassword() error = %v", err)
	}

	if err := CheckPassword(hash, "wrong password"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("CheckPassword() with wrong password = %v, want ErrWrongPassword", err)
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("HashPassword() should reject short passwords")
	}
}

func TestGenerateResetCode(t *testing.T) {
	code, err := GenerateResetCode()
	if err != nil {
		t.Fatalf("GenerateResetCode() error = %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("code %q contains non-digit %q", code, c)
		}
	}
}

func TestHashResetCode_Deterministic(t *testing.T) {
	if HashResetCode("123456") != HashResetCode("123456") {
		t.Error("same code hashes differently")
	}
	if HashResetCode("123456") == HashResetCode("654321") {
		t.Error("different codes hash identically")
	}
}
