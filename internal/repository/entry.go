package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const entryColumns = `
	id, website_id, identifier, data, status, priority,
	attempts, max_attempts, last_error, result,
	scheduled_at, last_attempt_at, completed_at, created_at, updated_at`

type EntryRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewEntryRepository(db *sql.DB, log logger.Logger) *EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: log,
	}
}

func scanEntry(row interface{ Scan(...any) error }) (*models.DataEntry, error) {
	var e models.DataEntry
	err := row.Scan(
		&e.ID,
		&e.WebsiteID,
		&e.Identifier,
		&e.Data,
		&e.Status,
		&e.Priority,
		&e.Attempts,
		&e.MaxAttempts,
		&e.LastError,
		&e.Result,
		&e.ScheduledAt,
		&e.LastAttemptAt,
		&e.CompletedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EntryRepository) Create(ctx context.Context, entry *models.DataEntry) error {
	if entry.Status == "" {
		entry.Status = models.EntryStatusPending
	}
	if entry.MaxAttempts == 0 {
		entry.MaxAttempts = 3
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	query := `
		INSERT INTO data_entries (
			website_id, identifier, data, status, priority,
			max_attempts, scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		entry.WebsiteID,
		entry.Identifier,
		entry.Data,
		entry.Status,
		entry.Priority,
		entry.MaxAttempts,
		entry.ScheduledAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert data entry: %w", err)
	}

	return nil
}

func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*models.DataEntry, error) {
	query := `SELECT` + entryColumns + ` FROM data_entries WHERE id = $1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query data entry: %w", err)
	}

	return e, nil
}

// NextReady returns entries eligible for dispatch: pending status, no future
// schedule, on an active website. Ordered by priority descending, then
// creation time ascending so equal-priority entries run oldest first.
func (r *EntryRepository) NextReady(ctx context.Context, limit int) ([]*models.DataEntry, error) {
	query := `
		SELECT de.id, de.website_id, de.identifier, de.data, de.status, de.priority,
		       de.attempts, de.max_attempts, de.last_error, de.result,
		       de.scheduled_at, de.last_attempt_at, de.completed_at, de.created_at, de.updated_at
		FROM data_entries de
		JOIN websites w ON w.id = de.website_id
		WHERE de.status = $1
		  AND (de.scheduled_at IS NULL OR de.scheduled_at <= $2)
		  AND w.is_active = true
		ORDER BY de.priority DESC, de.created_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.EntryStatusPending, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query ready entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.DataEntry
	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan data entry: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate ready entries: %w", rowsErr)
	}

	return entries, nil
}

// NextReadyForWebsite is NextReady scoped to one website.
func (r *EntryRepository) NextReadyForWebsite(ctx context.Context, websiteID int64, limit int) ([]*models.DataEntry, error) {
	query := `
		SELECT de.id, de.website_id, de.identifier, de.data, de.status, de.priority,
		       de.attempts, de.max_attempts, de.last_error, de.result,
		       de.scheduled_at, de.last_attempt_at, de.completed_at, de.created_at, de.updated_at
		FROM data_entries de
		JOIN websites w ON w.id = de.website_id
		WHERE de.status = $1
		  AND de.website_id = $2
		  AND (de.scheduled_at IS NULL OR de.scheduled_at <= $3)
		  AND w.is_active = true
		ORDER BY de.priority DESC, de.created_at ASC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, models.EntryStatusPending, websiteID, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query ready entries for website: %w", err)
	}
	defer rows.Close()

	var entries []*models.DataEntry
	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan data entry: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate ready entries: %w", rowsErr)
	}

	return entries, nil
}

// MarkQueued transitions the given entries to queued in a single statement.
// Used by the dispatcher after handing a batch to the worker engine.
func (r *EntryRepository) MarkQueued(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE data_entries SET status = $1, updated_at = $2 WHERE id = ANY($3)`

	_, err := r.db.ExecContext(ctx, query, models.EntryStatusQueued, time.Now(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark entries queued: %w", err)
	}

	return nil
}

// MarkProcessing transitions an entry to processing, counting the attempt and
// stamping its start time. Every call counts an attempt even if the entry was
// already processing.
func (r *EntryRepository) MarkProcessing(ctx context.Context, id int64) (*models.DataEntry, error) {
	now := time.Now()
	query := `
		UPDATE data_entries
		SET status = $1, attempts = attempts + 1, last_attempt_at = $2, updated_at = $2
		WHERE id = $3
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, models.EntryStatusProcessing, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark entry processing: %w", err)
	}

	return e, nil
}

// MarkSuccess finalizes an entry with its result payload.
func (r *EntryRepository) MarkSuccess(ctx context.Context, id int64, result models.JSONMap) (*models.DataEntry, error) {
	now := time.Now()
	query := `
		UPDATE data_entries
		SET status = $1, result = $2, last_error = NULL, completed_at = $3, updated_at = $3
		WHERE id = $4
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, models.EntryStatusSuccess, result, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark entry success: %w", err)
	}

	return e, nil
}

// MarkFailed records a failed attempt. The entry lands in failed only once
// its retry budget is exhausted; otherwise it returns to pending for another
// try. completed_at is stamped only on the terminal failure.
func (r *EntryRepository) MarkFailed(ctx context.Context, id int64, errMsg string) (*models.DataEntry, error) {
	now := time.Now()
	query := `
		UPDATE data_entries
		SET status = CASE WHEN attempts >= max_attempts THEN $1 ELSE $2 END,
		    completed_at = CASE WHEN attempts >= max_attempts THEN $3 ELSE completed_at END,
		    last_error = $4,
		    updated_at = $3
		WHERE id = $5
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query,
		models.EntryStatusFailed, models.EntryStatusPending, now, errMsg, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark entry failed: %w", err)
	}

	return e, nil
}

// Cancel moves a non-terminal entry to cancelled.
func (r *EntryRepository) Cancel(ctx context.Context, id int64) (*models.DataEntry, error) {
	now := time.Now()
	query := `
		UPDATE data_entries
		SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5, $6)
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query,
		models.EntryStatusCancelled, now, id,
		models.EntryStatusSuccess, models.EntryStatusFailed, models.EntryStatusCancelled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel entry: %w", err)
	}

	return e, nil
}

// Retry resets a failed or cancelled entry for a fresh round of attempts.
func (r *EntryRepository) Retry(ctx context.Context, id int64) (*models.DataEntry, error) {
	now := time.Now()
	query := `
		UPDATE data_entries
		SET status = $1, attempts = 0, last_error = NULL, result = NULL,
		    completed_at = NULL, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
		RETURNING` + entryColumns

	e, err := scanEntry(r.db.QueryRowContext(ctx, query,
		models.EntryStatusPending, now, id,
		models.EntryStatusFailed, models.EntryStatusCancelled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("retry entry: %w", err)
	}

	return e, nil
}

// ResetQueued returns all queued entries to pending. Called alongside engine
// queue clears so database state matches the emptied queues.
func (r *EntryRepository) ResetQueued(ctx context.Context, websiteID *int64) (int64, error) {
	now := time.Now()

	var result sql.Result
	var err error
	if websiteID != nil {
		query := `UPDATE data_entries SET status = $1, updated_at = $2 WHERE status = $3 AND website_id = $4`
		result, err = r.db.ExecContext(ctx, query, models.EntryStatusPending, now, models.EntryStatusQueued, *websiteID)
	} else {
		query := `UPDATE data_entries SET status = $1, updated_at = $2 WHERE status = $3`
		result, err = r.db.ExecContext(ctx, query, models.EntryStatusPending, now, models.EntryStatusQueued)
	}
	if err != nil {
		return 0, fmt.Errorf("reset queued entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// Stats returns per-status entry counts, optionally scoped to one website.
func (r *EntryRepository) Stats(ctx context.Context, websiteID *int64) (*models.EntryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'queued'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM data_entries`

	var row *sql.Row
	if websiteID != nil {
		row = r.db.QueryRowContext(ctx, query+` WHERE website_id = $1`, *websiteID)
	} else {
		row = r.db.QueryRowContext(ctx, query)
	}

	var stats models.EntryStats
	err := row.Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Queued,
		&stats.Processing,
		&stats.Success,
		&stats.Failed,
		&stats.Cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("query entry stats: %w", err)
	}

	return &stats, nil
}

// CreateBatch inserts a group of entries in one transaction. All entries are
// created or none are.
func (r *EntryRepository) CreateBatch(ctx context.Context, entries []*models.DataEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `
		INSERT INTO data_entries (
			website_id, identifier, data, status, priority,
			max_attempts, scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	for _, entry := range entries {
		if entry.Status == "" {
			entry.Status = models.EntryStatusPending
		}
		if entry.MaxAttempts == 0 {
			entry.MaxAttempts = 3
		}
		entry.CreatedAt = now
		entry.UpdatedAt = now

		insertErr := tx.QueryRowContext(ctx, query,
			entry.WebsiteID,
			entry.Identifier,
			entry.Data,
			entry.Status,
			entry.Priority,
			entry.MaxAttempts,
			entry.ScheduledAt,
			entry.CreatedAt,
			entry.UpdatedAt,
		).Scan(&entry.ID)
		if insertErr != nil {
			return fmt.Errorf("insert entry %s: %w", entry.Identifier, insertErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit batch insert: %w", commitErr)
	}

	return nil
}
