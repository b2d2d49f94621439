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

const captchaColumns = `
	id, name, provider, api_key, is_active, is_default, priority,
	supported_types, success_count, failure_count,
	average_solve_time, cost_per_solve, created_at, updated_at`

type CaptchaRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewCaptchaRepository(db *sql.DB, log logger.Logger) *CaptchaRepository {
	return &CaptchaRepository{
		db:     db,
		logger: log,
	}
}

func scanCaptcha(row interface{ Scan(...any) error }) (*models.CaptchaService, error) {
	var c models.CaptchaService
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Provider,
		&c.APIKey,
		&c.IsActive,
		&c.IsDefault,
		&c.Priority,
		&c.SupportedTypes,
		&c.SuccessCount,
		&c.FailureCount,
		&c.AverageSolveTime,
		&c.CostPerSolve,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive returns all active services, default first, then by priority.
func (r *CaptchaRepository) ListActive(ctx context.Context) ([]*models.CaptchaService, error) {
	query := `SELECT` + captchaColumns + `
		FROM captcha_services
		WHERE is_active = true
		ORDER BY is_default DESC, priority DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query captcha services: %w", err)
	}
	defer rows.Close()

	var services []*models.CaptchaService
	for rows.Next() {
		c, scanErr := scanCaptcha(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan captcha service: %w", scanErr)
		}
		services = append(services, c)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate captcha services: %w", rowsErr)
	}

	return services, nil
}

// GetDefault returns the service to use: the active one flagged default, or
// failing that the highest-priority active one.
func (r *CaptchaRepository) GetDefault(ctx context.Context) (*models.CaptchaService, error) {
	query := `SELECT` + captchaColumns + `
		FROM captcha_services
		WHERE is_active = true
		ORDER BY is_default DESC, priority DESC
		LIMIT 1`

	c, err := scanCaptcha(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active captcha service: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query default captcha service: %w", err)
	}

	return c, nil
}

// RecordSuccess counts a solve and folds its duration into the rolling
// average. The average is updated before the counter so the weighting uses
// the pre-increment success count.
func (r *CaptchaRepository) RecordSuccess(ctx context.Context, id int64, solveTime float64) (*models.CaptchaService, error) {
	now := time.Now()
	query := `
		UPDATE captcha_services
		SET average_solve_time = CASE
		        WHEN average_solve_time IS NULL OR success_count = 0 THEN $1
		        ELSE (average_solve_time * success_count + $1) / (success_count + 1)
		    END,
		    success_count = success_count + 1,
		    updated_at = $2
		WHERE id = $3
		RETURNING` + captchaColumns

	c, err := scanCaptcha(r.db.QueryRowContext(ctx, query, solveTime, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("captcha service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record captcha success: %w", err)
	}

	return c, nil
}

// RecordFailure counts a failed solve.
func (r *CaptchaRepository) RecordFailure(ctx context.Context, id int64) (*models.CaptchaService, error) {
	now := time.Now()
	query := `
		UPDATE captcha_services
		SET failure_count = failure_count + 1, updated_at = $1
		WHERE id = $2
		RETURNING` + captchaColumns

	c, err := scanCaptcha(r.db.QueryRowContext(ctx, query, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("captcha service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record captcha failure: %w", err)
	}

	return c, nil
}
