package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const websiteColumns = `
	id, name, slug, base_url, description, is_active,
	headers, cookies, timeout, retry_attempts, retry_delay,
	concurrency_limit, max_jobs_per_minute, priority,
	user_agent, use_stealth, use_proxy, created_at, updated_at`

type WebsiteRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewWebsiteRepository(db *sql.DB, log logger.Logger) *WebsiteRepository {
	return &WebsiteRepository{
		db:     db,
		logger: log,
	}
}

func scanWebsite(row interface{ Scan(...any) error }) (*models.Website, error) {
	var w models.Website
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Slug,
		&w.BaseURL,
		&w.Description,
		&w.IsActive,
		&w.Headers,
		&w.Cookies,
		&w.Timeout,
		&w.RetryAttempts,
		&w.RetryDelay,
		&w.ConcurrencyLimit,
		&w.MaxJobsPerMinute,
		&w.Priority,
		&w.UserAgent,
		&w.UseStealth,
		&w.UseProxy,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListActive returns active websites ordered by priority, highest first.
func (r *WebsiteRepository) ListActive(ctx context.Context) ([]*models.Website, error) {
	query := `SELECT` + websiteColumns + `
		FROM websites
		WHERE is_active = true
		ORDER BY priority DESC, name ASC`

	return r.queryWebsites(ctx, query)
}

// ListAll returns every website regardless of active state.
func (r *WebsiteRepository) ListAll(ctx context.Context) ([]*models.Website, error) {
	query := `SELECT` + websiteColumns + `
		FROM websites
		ORDER BY priority DESC, name ASC`

	return r.queryWebsites(ctx, query)
}

func (r *WebsiteRepository) queryWebsites(ctx context.Context, query string, args ...any) ([]*models.Website, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query websites: %w", err)
	}
	defer rows.Close()

	var websites []*models.Website
	for rows.Next() {
		w, scanErr := scanWebsite(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan website: %w", scanErr)
		}
		websites = append(websites, w)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate websites: %w", rowsErr)
	}

	return websites, nil
}

func (r *WebsiteRepository) GetByID(ctx context.Context, id int64) (*models.Website, error) {
	query := `SELECT` + websiteColumns + ` FROM websites WHERE id = $1`

	w, err := scanWebsite(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("website %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query website: %w", err)
	}

	return w, nil
}

func (r *WebsiteRepository) GetBySlug(ctx context.Context, slug string) (*models.Website, error) {
	query := `SELECT` + websiteColumns + ` FROM websites WHERE slug = $1`

	w, err := scanWebsite(r.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("website %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query website: %w", err)
	}

	return w, nil
}

// SetActive flips the website activation flag. This is the only website field
// the control plane mutates.
func (r *WebsiteRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE websites SET is_active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update website active flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("website %d: %w", id, ErrNotFound)
	}

	return nil
}
