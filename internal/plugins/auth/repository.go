package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// UserRepository defines the data access contract for user operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// SignupPhone reads the phone captured in the user's signup metadata,
	// for recovering a profile whose whatsapp_phone column was never filled.
	SignupPhone(ctx context.Context, id string) (string, error)

	// UpdateWhatsappPhone persists a recovered/normalized phone back to the
	// profile (the self-healing upsert).
	UpdateWhatsappPhone(ctx context.Context, id, phone string) error
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, full_name, password_hash, role, whatsapp_phone, created_at, last_login_at`

// FindByID retrieves a user by their UUID.
// Returns apperror.NotFound if no user exists with this ID.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id), "querying user by id")
}

// FindByEmail retrieves a user by their email address.
// Returns apperror.NotFound if no user exists with this email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email), "querying user by email")
}

func (r *userRepository) scanUser(row *sql.Row, op string) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.WhatsappPhone,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateLastLogin sets the last_login_at timestamp to now for the given user.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// SignupPhone extracts the phone number recorded in the signup_metadata
// JSON column. Returns empty string (not an error) when no phone was
// captured at signup.
func (r *userRepository) SignupPhone(ctx context.Context, id string) (string, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT signup_metadata FROM users WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NewNotFound("user not found")
	}
	if err != nil {
		return "", fmt.Errorf("querying signup metadata: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return "", nil
	}

	var meta struct {
		Phone         string `json:"phone"`
		WhatsappPhone string `json:"whatsapp_phone"`
	}
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		// Metadata is best-effort data from the signup form; malformed
		// JSON means there is nothing to recover.
		return "", nil
	}

	if meta.WhatsappPhone != "" {
		return meta.WhatsappPhone, nil
	}
	return meta.Phone, nil
}

// UpdateWhatsappPhone persists a phone number to the user's profile.
func (r *userRepository) UpdateWhatsappPhone(ctx context.Context, id, phone string) error {
	query := `UPDATE users SET whatsapp_phone = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, phone, id)
	if err != nil {
		return fmt.Errorf("updating whatsapp phone: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}
