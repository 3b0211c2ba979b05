package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the data access contract for audit log operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type Repository interface {
	// Insert writes a new audit entry.
	Insert(ctx context.Context, entry *Entry) error

	// List returns paginated audit entries, most recent first, plus the
	// total count for pagination.
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)

	// ListByEmail returns recent entries for a specific email, used when
	// investigating a single account.
	ListByEmail(ctx context.Context, email string, limit int) ([]Entry, error)
}

// repository implements Repository with hand-written MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates an audit repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Insert writes a new audit entry. The details map is serialized to JSON
// before storage; nil details are stored as SQL NULL.
func (r *repository) Insert(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO audit_log (user_id, email, action, reason, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		nullIfEmpty(entry.UserID),
		nullIfEmpty(entry.Email),
		entry.Action,
		nullIfEmpty(entry.Reason),
		detailsJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit entry id: %w", err)
	}
	entry.ID = id

	return nil
}

// List returns audit entries ordered by most recent first.
func (r *repository) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, user_id, email, action, reason, details, created_at
	          FROM audit_log
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByEmail returns the most recent entries recorded against an email.
func (r *repository) ListByEmail(ctx context.Context, email string, limit int) ([]Entry, error) {
	query := `SELECT id, user_id, email, action, reason, details, created_at
	          FROM audit_log
	          WHERE email = ?
	          ORDER BY created_at DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries by email: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows reads audit entries from a result set, deserializing the JSON
// details column.
func scanRows(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var userID, email, reason sql.NullString
		var detailsJSON []byte

		if err := rows.Scan(&e.ID, &userID, &email, &e.Action, &reason, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}

		e.UserID = userID.String
		e.Email = email.String
		e.Reason = reason.String

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling audit details: %w", err)
			}
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// nullIfEmpty maps empty strings to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
