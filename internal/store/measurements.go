// ABOUTME: Measurement record CRUD scoped by owning user
// ABOUTME: Upsert-by-ID-presence save, newest-first listing, lossy field decoding

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// createdAtLayout is a fixed-width RFC 3339 form with a zero-padded
// nanosecond fraction. RFC3339Nano strips trailing fractional zeros,
// which breaks lexicographic ORDER BY on the text column ("…00.1Z"
// sorts after "…00.15Z"); padding keeps string order equal to time
// order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// validateMeasurement checks required values before any write.
func validateMeasurement(m *Measurement) error {
	if m.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if m.CustomerName == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if m.PhoneNumber == "" {
		return fmt.Errorf("%w: phone number is required", ErrValidation)
	}
	return nil
}

// SaveMeasurement inserts m when it has no ID yet, otherwise updates the
// existing row matched by (id, user_id). The user_id predicate on the
// update path is mandatory: a caller holding someone else's row ID must
// not be able to touch that row. Updating a row that does not match
// returns ErrNotFound.
func (s *SQLiteStore) SaveMeasurement(ctx context.Context, m *Measurement) (int64, error) {
	if err := validateMeasurement(m); err != nil {
		return 0, err
	}

	data, err := json.Marshal(m.Fields)
	if err != nil {
		return 0, fmt.Errorf("encoding fields: %w", err)
	}

	if m.ID == 0 {
		createdAt := time.Now().UTC()
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO measurements (user_id, customer_name, phone_number, measurement_data, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, m.UserID, m.CustomerName, m.PhoneNumber, string(data), createdAt.Format(createdAtLayout))
		if err != nil {
			return 0, fmt.Errorf("inserting measurement: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("getting insert id: %w", err)
		}

		m.ID = id
		m.CreatedAt = createdAt
		s.logger.Debug("inserted measurement", "id", id, "user_id", m.UserID)
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE measurements
		SET customer_name = ?, phone_number = ?, measurement_data = ?
		WHERE id = ? AND user_id = ?
	`, m.CustomerName, m.PhoneNumber, string(data), m.ID, m.UserID)
	if err != nil {
		return 0, fmt.Errorf("updating measurement: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, ErrNotFound
	}

	s.logger.Debug("updated measurement", "id", m.ID, "user_id", m.UserID)
	return m.ID, nil
}

// ListMeasurements returns all of userID's records, most recently created
// first. A record whose stored field blob no longer decodes is returned
// with an empty field list rather than failing the whole listing.
func (s *SQLiteStore) ListMeasurements(ctx context.Context, userID string) ([]*Measurement, error) {
	return s.queryMeasurements(ctx, `
		SELECT id, user_id, customer_name, phone_number, measurement_data, created_at
		FROM measurements
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// SearchMeasurements returns userID's records whose customer name
// contains query (case-insensitive) or whose phone number contains query,
// newest first. An empty query lists everything.
func (s *SQLiteStore) SearchMeasurements(ctx context.Context, userID, query string) ([]*Measurement, error) {
	if query == "" {
		return s.ListMeasurements(ctx, userID)
	}

	pattern := "%" + escapeLike(query) + "%"
	return s.queryMeasurements(ctx, `
		SELECT id, user_id, customer_name, phone_number, measurement_data, created_at
		FROM measurements
		WHERE user_id = ?
		  AND (customer_name LIKE ? ESCAPE '\' OR phone_number LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id DESC
	`, userID, pattern, pattern)
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLiteStore) queryMeasurements(ctx context.Context, query string, args ...any) ([]*Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	measurements := []*Measurement{}
	for rows.Next() {
		var m Measurement
		var data, createdAtStr string

		if err := rows.Scan(&m.ID, &m.UserID, &m.CustomerName, &m.PhoneNumber, &data, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning measurement row: %w", err)
		}

		if err := json.Unmarshal([]byte(data), &m.Fields); err != nil {
			// A corrupt blob degrades that one record, never the listing
			s.logger.Warn("undecodable measurement fields", "id", m.ID, "error", err)
			m.Fields = []Field{}
		}

		m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		measurements = append(measurements, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurement rows: %w", err)
	}

	return measurements, nil
}

// GetMeasurement retrieves a single record by (id, userID).
// Returns ErrNotFound when the row is absent or owned by another user.
func (s *SQLiteStore) GetMeasurement(ctx context.Context, id int64, userID string) (*Measurement, error) {
	var m Measurement
	var data, createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, customer_name, phone_number, measurement_data, created_at
		FROM measurements
		WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&m.ID, &m.UserID, &m.CustomerName, &m.PhoneNumber, &data, &createdAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying measurement: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &m.Fields); err != nil {
		s.logger.Warn("undecodable measurement fields", "id", m.ID, "error", err)
		m.Fields = []Field{}
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &m, nil
}

// DeleteMeasurement removes the row matched by (id, userID). Deleting a
// nonexistent or unowned row is a no-op success, so the call is
// idempotent.
func (s *SQLiteStore) DeleteMeasurement(ctx context.Context, id int64, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM measurements WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting measurement: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted measurement", "id", id, "user_id", userID)
	}
	return nil
}
