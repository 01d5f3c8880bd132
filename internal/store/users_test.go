// ABOUTME: Tests for user account persistence
// ABOUTME: Covers duplicate emails, case-insensitive lookup, and password updates

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sampleUser(id, email string) *User {
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$10$fakehashfortesting",
		DisplayName:  "Test Tailor",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := sampleUser("user-1", "tailor@example.com")

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != "tailor@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "tailor@example.com")
	}
	if got.DisplayName != user.DisplayName {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, user.DisplayName)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateUser(ctx, sampleUser("user-1", "tailor@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := store.CreateUser(ctx, sampleUser("user-2", "Tailor@Example.com"))
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateUser(ctx, sampleUser("user-1", "Tailor@Example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUserByEmail(ctx, "TAILOR@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("ID = %q, want %q", got.ID, "user-1")
	}
	// Stored email is normalized
	if got.Email != "tailor@example.com" {
		t.Errorf("Email = %q, want lowercased", got.Email)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if _, err := store.GetUser(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateUser(ctx, sampleUser("user-1", "tailor@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.UpdateUserPassword(ctx, "user-1", "$2a$10$newhash"); err != nil {
		t.Fatalf("UpdateUserPassword failed: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.PasswordHash != "$2a$10$newhash" {
		t.Errorf("PasswordHash = %q, want updated hash", got.PasswordHash)
	}

	if err := store.UpdateUserPassword(ctx, "nonexistent", "hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
