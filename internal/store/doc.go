// Package store provides persistent storage for darzi using SQLite.
//
// # Architecture
//
// The package uses an interface-driven architecture with specialized
// interfaces:
//
//   - MeasurementStore: User-scoped CRUD over measurement records
//   - UserStore: Account persistence (signup, login, password changes)
//   - ResetCodeStore: One-time password reset codes
//
// SQLiteStore implements all interfaces in a single struct; Store
// composes them for callers that need everything.
//
// # Data Models
//
//   - Measurement: One customer's record — name, phone, and an ordered
//     list of Field values serialized as a single JSON blob. The store
//     never queries inside the blob.
//   - User: An account identified by a lowercased unique email.
//   - ResetCode: A hashed, short-lived, single-use recovery code.
//
// # User Scoping
//
// Every read and write against measurement rows carries the owning
// user's ID in the SQL predicate. Holding another user's row ID is not
// enough to read, update, or delete that row.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Row absent or owned by another user
//   - ErrValidation: Required value missing before a write
//   - ErrStorageUnavailable: Database cannot be opened or migrated
//   - ErrEmailExists: Duplicate account email
//
// All methods accept context.Context for cancellation support.
//
// # Migrations
//
// The schema is versioned through PRAGMA user_version: the migrations
// slice in sqlite.go is the append-only schema history, and opening a
// store applies exactly the entries the database file is missing. Each
// migration commits atomically with its version bump.
package store
