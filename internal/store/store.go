// ABOUTME: Store interface and data types for darzi persistence
// ABOUTME: Defines Measurement, User, ResetCode structs and sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when a record is missing a required value
// before any write is attempted.
var ErrValidation = errors.New("validation failed")

// ErrStorageUnavailable is returned when the database file cannot be
// opened or the schema cannot be migrated.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrEmailExists is returned when creating a user with an email that is
// already registered.
var ErrEmailExists = errors.New("email already registered")

// Field is a single labeled measurement value. Fields are ordered: the
// slice order is the display order the record was entered in. Required
// fields are the fixed seed set the UI does not allow removing.
type Field struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Required bool   `json:"isRequired"`
}

// Measurement is one customer's measurement record. ID is zero until the
// record has been persisted. UserID is the opaque identifier of the
// owning account, assigned at creation and never changed.
type Measurement struct {
	ID           int64
	UserID       string
	CustomerName string
	PhoneNumber  string
	Fields       []Field
	CreatedAt    time.Time
}

// DefaultFields returns the seed set of required fields for a new record:
// the six standard garment dimensions, labeled in Urdu as tailors enter
// them (shirt length, collar, sleeve, width, trouser length, hem).
func DefaultFields() []Field {
	return []Field{
		{Key: "قمیض", Required: true},
		{Key: "تیرہ", Required: true},
		{Key: "بازو", Required: true},
		{Key: "چوڑائی", Required: true},
		{Key: "شلوار", Required: true},
		{Key: "پانچہ", Required: true},
	}
}

// User is an account that owns measurement records.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// ResetCodeStatus represents the state of a password reset code.
type ResetCodeStatus string

const (
	ResetCodeStatusPending ResetCodeStatus = "pending"
	ResetCodeStatusUsed    ResetCodeStatus = "used"
	ResetCodeStatusExpired ResetCodeStatus = "expired"
)

// ResetCode is a short-lived one-time code for password recovery. Only a
// hash of the code is stored; the plaintext goes out by email and is
// never persisted.
type ResetCode struct {
	ID        string
	Email     string
	CodeHash  string
	Status    ResetCodeStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MeasurementStore defines user-scoped persistence for measurement
// records. Every operation that touches an existing row carries the
// owner's user ID; a caller can never read or mutate a row it does not
// own, even with a valid row ID.
type MeasurementStore interface {
	// SaveMeasurement inserts m when m.ID is zero (assigning ID and
	// CreatedAt) or updates the row matched by (ID, UserID) otherwise.
	// Returns the row ID. Updating a row that does not exist or is owned
	// by another user returns ErrNotFound.
	SaveMeasurement(ctx context.Context, m *Measurement) (int64, error)

	// ListMeasurements returns all records owned by userID, newest first.
	ListMeasurements(ctx context.Context, userID string) ([]*Measurement, error)

	// SearchMeasurements returns userID's records whose customer name
	// contains query (case-insensitive) or whose phone number contains
	// query, newest first. An empty query lists everything.
	SearchMeasurements(ctx context.Context, userID, query string) ([]*Measurement, error)

	// GetMeasurement returns the record matched by (id, userID).
	GetMeasurement(ctx context.Context, id int64, userID string) (*Measurement, error)

	// DeleteMeasurement removes the row matched by (id, userID).
	// Deleting a missing or unowned row is a no-op success.
	DeleteMeasurement(ctx context.Context, id int64, userID string) error
}

// UserStore defines account persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
}

// ResetCodeStore defines operations for password reset codes.
type ResetCodeStore interface {
	// CreateResetCode stores a new pending code.
	CreateResetCode(ctx context.Context, code *ResetCode) error

	// ConsumeResetCode atomically marks the pending, unexpired code for
	// email whose hash matches codeHash as used. Returns ErrNotFound if
	// no such code exists.
	ConsumeResetCode(ctx context.Context, email, codeHash string) error

	// DeleteExpiredResetCodes removes pending codes past their expiry.
	DeleteExpiredResetCodes(ctx context.Context) error
}

// Store combines all persistence interfaces. SQLiteStore implements it.
type Store interface {
	MeasurementStore
	UserStore
	ResetCodeStore

	// Close releases the underlying database handle.
	Close() error
}
