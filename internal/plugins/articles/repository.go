package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// Repository defines the data access contract for articles.
type Repository interface {
	Create(ctx context.Context, a *Article) error
	FindByID(ctx context.Context, id string) (*Article, error)
	FindBySlug(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context, status string, limit, offset int) ([]Article, int, error)
	Update(ctx context.Context, a *Article) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// repository implements Repository with MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a new article repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// articleColumns is the canonical column list for scanning articles.
const articleColumns = `id, title, slug, summary, body, status, author_id, created_at, updated_at, published_at`

// scanArticle scans one row into an Article.
func scanArticle(row interface{ Scan(...any) error }) (*Article, error) {
	a := &Article{}
	var publishedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Summary, &a.Body, &a.Status,
		&a.AuthorID, &a.CreatedAt, &a.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return a, nil
}

// Create inserts a new article row.
func (r *repository) Create(ctx context.Context, a *Article) error {
	query := `INSERT INTO articles (id, title, slug, summary, body, status, author_id, created_at, updated_at, published_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Slug, a.Summary, a.Body, a.Status,
		a.AuthorID, a.CreatedAt, a.UpdatedAt, a.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting article: %w", err)
	}
	return nil
}

// FindByID retrieves an article by ID.
func (r *repository) FindByID(ctx context.Context, id string) (*Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("article not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying article by id: %w", err)
	}
	return a, nil
}

// FindBySlug retrieves an article by its URL slug.
func (r *repository) FindBySlug(ctx context.Context, slug string) (*Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE slug = ?`

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("article not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying article by slug: %w", err)
	}
	return a, nil
}

// List returns a page of articles, newest first, optionally filtered by
// status. The second return value is the total matching count.
func (r *repository) List(ctx context.Context, status string, limit, offset int) ([]Article, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM articles` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting articles: %w", err)
	}

	query := `SELECT ` + articleColumns + ` FROM articles` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, total, rows.Err()
}

// Update persists changes to an existing article.
func (r *repository) Update(ctx context.Context, a *Article) error {
	query := `UPDATE articles
	          SET title = ?, slug = ?, summary = ?, body = ?, status = ?, updated_at = ?, published_at = ?
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		a.Title, a.Slug, a.Summary, a.Body, a.Status,
		a.UpdatedAt, a.PublishedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating article: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking article update: %w", err)
	}
	if affected == 0 {
		return apperror.NewNotFound("article not found")
	}
	return nil
}

// Delete removes an article.
func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting article: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking article delete: %w", err)
	}
	if affected == 0 {
		return apperror.NewNotFound("article not found")
	}
	return nil
}

// SlugExists reports whether any article already uses the slug.
func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE slug = ?`, slug).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return count > 0, nil
}
