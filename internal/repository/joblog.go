package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const jobLogColumns = `
	id, data_entry_id, session_id, level, event, message,
	context, duration_ms, created_at`

type JobLogRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewJobLogRepository(db *sql.DB, log logger.Logger) *JobLogRepository {
	return &JobLogRepository{
		db:     db,
		logger: log,
	}
}

func (r *JobLogRepository) Create(ctx context.Context, jobLog *models.JobLog) error {
	jobLog.CreatedAt = time.Now()

	query := `
		INSERT INTO job_logs (
			data_entry_id, session_id, level, event, message,
			context, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		jobLog.DataEntryID,
		jobLog.SessionID,
		jobLog.Level,
		jobLog.Event,
		jobLog.Message,
		jobLog.Context,
		jobLog.DurationMs,
		jobLog.CreatedAt,
	).Scan(&jobLog.ID)
	if err != nil {
		return fmt.Errorf("insert job log: %w", err)
	}

	return nil
}

// RecentFilter narrows the recent log query. Zero values mean no filter.
type RecentFilter struct {
	DataEntryID int64
	SessionID   string
	Level       string
	Limit       int
}

// Recent returns the newest log lines matching the filter, most recent first.
func (r *JobLogRepository) Recent(ctx context.Context, filter RecentFilter) ([]*models.JobLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + jobLogColumns + ` FROM job_logs WHERE 1=1`
	args := []any{}

	if filter.DataEntryID != 0 {
		args = append(args, filter.DataEntryID)
		query += fmt.Sprintf(" AND data_entry_id = $%d", len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if filter.Level != "" {
		args = append(args, filter.Level)
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.JobLog
	for rows.Next() {
		var l models.JobLog
		scanErr := rows.Scan(
			&l.ID,
			&l.DataEntryID,
			&l.SessionID,
			&l.Level,
			&l.Event,
			&l.Message,
			&l.Context,
			&l.DurationMs,
			&l.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job log: %w", scanErr)
		}
		logs = append(logs, &l)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate job logs: %w", rowsErr)
	}

	return logs, nil
}
