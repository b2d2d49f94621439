package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const sessionColumns = `
	id, session_id, website_id, status,
	processed_count, success_count, failure_count,
	last_error, system_info, started_at, stopped_at,
	last_heartbeat_at, created_at, updated_at`

type SessionRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSessionRepository(db *sql.DB, log logger.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: log,
	}
}

func scanSession(row interface{ Scan(...any) error }) (*models.BotSession, error) {
	var s models.BotSession
	err := row.Scan(
		&s.ID,
		&s.SessionID,
		&s.WebsiteID,
		&s.Status,
		&s.ProcessedCount,
		&s.SuccessCount,
		&s.FailureCount,
		&s.LastError,
		&s.SystemInfo,
		&s.StartedAt,
		&s.StoppedAt,
		&s.LastHeartbeatAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Register creates a new session row. A fresh session identifier is assigned
// when the caller does not supply one.
func (r *SessionRepository) Register(ctx context.Context, session *models.BotSession) error {
	if session.SessionID == "" {
		session.SessionID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusIdle
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.StartedAt == nil {
		session.StartedAt = &now
	}
	session.LastHeartbeatAt = &now

	query := `
		INSERT INTO bot_sessions (
			session_id, website_id, status, system_info,
			started_at, last_heartbeat_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		session.SessionID,
		session.WebsiteID,
		session.Status,
		session.SystemInfo,
		session.StartedAt,
		session.LastHeartbeatAt,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("insert bot session: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.BotSession, error) {
	query := `SELECT` + sessionColumns + ` FROM bot_sessions WHERE session_id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bot session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query bot session: %w", err)
	}

	return s, nil
}

// ListActive returns sessions in idle, running or paused state, newest first.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*models.BotSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM bot_sessions
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query,
		models.SessionStatusIdle, models.SessionStatusRunning, models.SessionStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.BotSession
	for rows.Next() {
		s, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan bot session: %w", scanErr)
		}
		sessions = append(sessions, s)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate active sessions: %w", rowsErr)
	}

	return sessions, nil
}

// UpdateStatus sets a session status. A status report proves the worker is
// alive, so it advances the heartbeat stamp too. Transitions into stopped or
// error stamp stopped_at; a transition back to an active state clears it.
func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID, status string, lastError *string) (*models.BotSession, error) {
	now := time.Now()
	query := `
		UPDATE bot_sessions
		SET status = $1,
		    last_error = COALESCE($2, last_error),
		    stopped_at = CASE WHEN $1 IN ($3, $4) THEN $5 ELSE NULL END,
		    last_heartbeat_at = $5,
		    updated_at = $5
		WHERE session_id = $6
		RETURNING` + sessionColumns

	s, err := scanSession(r.db.QueryRowContext(ctx, query,
		status, lastError,
		models.SessionStatusStopped, models.SessionStatusError,
		now, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bot session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}

	return s, nil
}

// Heartbeat stamps the liveness time and merges any reported system info into
// the stored document. Existing keys not present in the report are kept.
func (r *SessionRepository) Heartbeat(ctx context.Context, sessionID string, systemInfo models.JSONMap) (*models.BotSession, error) {
	now := time.Now()
	query := `
		UPDATE bot_sessions
		SET last_heartbeat_at = $1,
		    system_info = COALESCE(system_info, '{}'::jsonb) || COALESCE($2, '{}'::jsonb),
		    updated_at = $1
		WHERE session_id = $3
		RETURNING` + sessionColumns

	s, err := scanSession(r.db.QueryRowContext(ctx, query, now, systemInfo, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bot session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("heartbeat session: %w", err)
	}

	return s, nil
}

// RecordCompletion atomically counts one processed entry plus its outcome.
// Finishing work is liveness, so the heartbeat stamp advances with it.
func (r *SessionRepository) RecordCompletion(ctx context.Context, sessionID string, success bool) (*models.BotSession, error) {
	now := time.Now()
	query := `
		UPDATE bot_sessions
		SET processed_count = processed_count + 1,
		    success_count = success_count + CASE WHEN $1 THEN 1 ELSE 0 END,
		    failure_count = failure_count + CASE WHEN $1 THEN 0 ELSE 1 END,
		    last_heartbeat_at = $2,
		    updated_at = $2
		WHERE session_id = $3
		RETURNING` + sessionColumns

	s, err := scanSession(r.db.QueryRowContext(ctx, query, success, now, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bot session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}

	return s, nil
}

// SweepStale forces sessions whose heartbeat is older than the cutoff into
// the error state and returns how many were affected.
func (r *SessionRepository) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	query := `
		UPDATE bot_sessions
		SET status = $1, last_error = $2, stopped_at = $3, updated_at = $3
		WHERE status IN ($4, $5, $6)
		  AND COALESCE(last_heartbeat_at, created_at) < $7`

	result, err := r.db.ExecContext(ctx, query,
		models.SessionStatusError, models.StaleSessionError, now,
		models.SessionStatusIdle, models.SessionStatusRunning, models.SessionStatusPaused,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// TransitionActive moves every active session in fromStatus to toStatus and
// returns the number changed. Used by the global stop, pause and resume
// controls.
func (r *SessionRepository) TransitionActive(ctx context.Context, fromStatuses []string, toStatus string) (int64, error) {
	now := time.Now()
	query := `
		UPDATE bot_sessions
		SET status = $1,
		    stopped_at = CASE WHEN $1 IN ($2, $3) THEN $4 ELSE stopped_at END,
		    updated_at = $4
		WHERE status = ANY($5)`

	result, err := r.db.ExecContext(ctx, query,
		toStatus, models.SessionStatusStopped, models.SessionStatusError, now,
		pq.Array(fromStatuses))
	if err != nil {
		return 0, fmt.Errorf("transition sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}
