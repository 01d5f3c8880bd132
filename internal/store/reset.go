// ABOUTME: Password reset code persistence for the forgot-password flow
// ABOUTME: Codes are stored hashed, expire after a short TTL, and are single use

package store

import (
	"context"
	"fmt"
	"time"
)

// CreateResetCode stores a new pending reset code.
func (s *SQLiteStore) CreateResetCode(ctx context.Context, code *ResetCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reset_codes (id, email, code_hash, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, code.ID, code.Email, code.CodeHash, code.Status,
		code.CreatedAt.UTC().Format(time.RFC3339),
		code.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating reset code: %w", err)
	}
	s.logger.Debug("created reset code", "id", code.ID, "email", code.Email)
	return nil
}

// ConsumeResetCode marks the matching pending, unexpired code as used.
// The status predicate makes consumption atomic: two concurrent attempts
// with the same code cannot both succeed. Returns ErrNotFound if no code
// matches.
func (s *SQLiteStore) ConsumeResetCode(ctx context.Context, email, codeHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE reset_codes
		SET status = ?
		WHERE email = ? AND code_hash = ? AND status = ? AND expires_at > ?
	`, ResetCodeStatusUsed, email, codeHash, ResetCodeStatusPending, now)
	if err != nil {
		return fmt.Errorf("consuming reset code: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Info("consumed reset code", "email", email)
	return nil
}

// DeleteExpiredResetCodes removes pending codes past their expiry.
func (s *SQLiteStore) DeleteExpiredResetCodes(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM reset_codes WHERE expires_at <= ? AND status = ?
	`, now, ResetCodeStatusPending)
	if err != nil {
		return fmt.Errorf("deleting expired reset codes: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired reset codes", "count", rowsAffected)
	}
	return nil
}
