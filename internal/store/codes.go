package store

import (
	"context"
	"database/sql"
	"time"

	"codedrop/internal/models"
)

// CodeInUse reports whether code is reserved or already owns blobs.
func (s *Store) CodeInUse(ctx context.Context, code models.FetchCode) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 WHERE EXISTS (SELECT 1 FROM fetch_codes WHERE code = ?)
		OR EXISTS (SELECT 1 FROM blobs WHERE unique_code = ?)
	`, string(code), string(code)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReserveCode records a fresh reservation. It fails with ErrCodeTaken if the
// code is already reserved.
func (s *Store) ReserveCode(ctx context.Context, code models.FetchCode, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO fetch_codes (code, reserved_at) VALUES (?, ?)", string(code), formatTime(at))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCodeTaken
	}
	return nil
}

// ClaimCode binds code to one upload batch. A reserved, unclaimed code is
// claimed; an unknown code with no blobs is reserved and claimed in one step.
// Anything else fails with ErrCodeInUse.
func (s *Store) ClaimCode(ctx context.Context, code models.FetchCode, at time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "UPDATE fetch_codes SET claimed_at = ? WHERE code = ? AND claimed_at IS NULL", formatTime(at), string(code))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return tx.Commit()
	}

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 WHERE EXISTS (SELECT 1 FROM fetch_codes WHERE code = ?)
		OR EXISTS (SELECT 1 FROM blobs WHERE unique_code = ?)
	`, string(code), string(code)).Scan(&exists)
	switch {
	case err == nil:
		err = ErrCodeInUse
		return err
	case err != sql.ErrNoRows:
		return err
	}

	if _, err = tx.ExecContext(ctx, "INSERT INTO fetch_codes (code, reserved_at, claimed_at) VALUES (?, ?, ?)", string(code), formatTime(at), formatTime(at)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCodeReservation returns the reservation for code, or nil.
func (s *Store) GetCodeReservation(ctx context.Context, code models.FetchCode) (*models.CodeReservation, error) {
	var reservedAt string
	var claimedAt sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT reserved_at, claimed_at FROM fetch_codes WHERE code = ?", string(code)).Scan(&reservedAt, &claimedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &models.CodeReservation{Code: code}
	if out.ReservedAt, err = parseTime(reservedAt); err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		parsed, err := parseTime(claimedAt.String)
		if err != nil {
			return nil, err
		}
		out.ClaimedAt = &parsed
	}
	return out, nil
}

// PurgeCodeReservations removes reservations made before the cutoff that own no
// blobs and are not claimed by a batch that started after the cutoff.
func (s *Store) PurgeCodeReservations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM fetch_codes
		WHERE reserved_at < ?
		AND (claimed_at IS NULL OR claimed_at < ?)
		AND NOT EXISTS (SELECT 1 FROM blobs WHERE blobs.unique_code = fetch_codes.code)
	`, formatTime(before), formatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseCode clears the claim on code so a rolled-back batch can be retried.
// It is a no-op while blobs still exist under the code.
func (s *Store) ReleaseCode(ctx context.Context, code models.FetchCode) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_codes SET claimed_at = NULL
		WHERE code = ?
		AND NOT EXISTS (SELECT 1 FROM blobs WHERE blobs.unique_code = fetch_codes.code)
	`, string(code))
	return err
}
