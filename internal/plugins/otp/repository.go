package otp

import (
	"context"
	"database/sql"
	"fmt"
)

// CodeRepository defines the data access contract for one-time codes.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type CodeRepository interface {
	// Create persists a new code. Any prior unconsumed codes for the same
	// email are invalidated first: only the most recent code can verify.
	Create(ctx context.Context, code *Code) error

	// Consume atomically verifies and burns a code. Returns true only if
	// an unexpired, unconsumed code matched — wrong code, expired code,
	// and already-used code are all just "false", indistinguishable.
	Consume(ctx context.Context, email, code string) (bool, error)

	// PurgeExpired deletes codes past their expiry. Called opportunistically;
	// expired rows are already unusable, this is housekeeping.
	PurgeExpired(ctx context.Context) (int64, error)
}

// codeRepository implements CodeRepository with hand-written MariaDB queries.
type codeRepository struct {
	db *sql.DB
}

// NewCodeRepository creates a code repository backed by the given DB pool.
func NewCodeRepository(db *sql.DB) CodeRepository {
	return &codeRepository{db: db}
}

// Create invalidates prior pending codes for the email and inserts the new
// one inside a single transaction, so there is never more than one code
// that can verify for a given email.
func (r *codeRepository) Create(ctx context.Context, code *Code) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning otp transaction: %w", err)
	}
	defer tx.Rollback()

	invalidate := `UPDATE otp_codes SET consumed_at = NOW()
	               WHERE email = ? AND consumed_at IS NULL`
	if _, err := tx.ExecContext(ctx, invalidate, code.Email); err != nil {
		return fmt.Errorf("invalidating prior codes: %w", err)
	}

	insert := `INSERT INTO otp_codes (id, email, code, whatsapp_phone, user_id, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		code.ID,
		code.Email,
		code.Code,
		code.WhatsappPhone,
		code.UserID,
		code.CreatedAt,
		code.ExpiresAt,
	); err != nil {
		return fmt.Errorf("inserting otp code: %w", err)
	}

	return tx.Commit()
}

// Consume marks the code consumed if and only if it is still live. A single
// UPDATE keeps the check-and-burn atomic under concurrent verify attempts.
func (r *codeRepository) Consume(ctx context.Context, email, code string) (bool, error) {
	query := `UPDATE otp_codes SET consumed_at = NOW()
	          WHERE email = ? AND code = ? AND consumed_at IS NULL AND expires_at > NOW()`

	result, err := r.db.ExecContext(ctx, query, email, code)
	if err != nil {
		return false, fmt.Errorf("consuming otp code: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading consume result: %w", err)
	}
	return n == 1, nil
}

// PurgeExpired removes codes whose expiry has passed.
func (r *codeRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purging expired otp codes: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
