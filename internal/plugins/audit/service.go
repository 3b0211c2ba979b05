package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// perPage is the number of audit entries shown per page in the admin
// activity feed.
const perPage = 50

// maxEmailHistoryEntries caps per-account history lookups to prevent
// unbounded result sets.
const maxEmailHistoryEntries = 100

// Service handles business logic for the security audit log.
type Service interface {
	// Log records an audit entry. Designed to be fire-and-forget friendly:
	// errors are logged but callers may choose to ignore them since audit
	// failures must not block the primary operation.
	Log(ctx context.Context, entry *Entry) error

	// GetActivity returns a paginated activity feed for the admin dashboard.
	GetActivity(ctx context.Context, page int) ([]Entry, int, error)

	// GetEmailHistory returns recent events recorded against one email.
	GetEmailHistory(ctx context.Context, email string) ([]Entry, error)
}

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new audit service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Log validates and persists an audit entry. On persistence failure the
// error is both logged and returned — callers decide whether to care.
func (s *service) Log(ctx context.Context, entry *Entry) error {
	if entry.Action == "" {
		return apperror.NewBadRequest("audit action is required")
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			slog.String("action", entry.Action),
			slog.String("email", entry.Email),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("writing audit entry: %w", err))
	}
	return nil
}

// GetActivity returns one page of the audit feed.
func (s *service) GetActivity(ctx context.Context, page int) ([]Entry, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	entries, total, err := s.repo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing audit activity: %w", err))
	}
	return entries, total, nil
}

// GetEmailHistory returns the recent audit trail for a single email.
func (s *service) GetEmailHistory(ctx context.Context, email string) ([]Entry, error) {
	if email == "" {
		return nil, apperror.NewBadRequest("email is required")
	}

	entries, err := s.repo.ListByEmail(ctx, email, maxEmailHistoryEntries)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing audit history: %w", err))
	}
	return entries, nil
}
