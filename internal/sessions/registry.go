// Package sessions manages worker session lifecycle and liveness.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

type sessionStore interface {
	Register(ctx context.Context, session *models.BotSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.BotSession, error)
	ListActive(ctx context.Context) ([]*models.BotSession, error)
	UpdateStatus(ctx context.Context, sessionID, status string, lastError *string) (*models.BotSession, error)
	Heartbeat(ctx context.Context, sessionID string, systemInfo models.JSONMap) (*models.BotSession, error)
	RecordCompletion(ctx context.Context, sessionID string, success bool) (*models.BotSession, error)
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Registry tracks worker sessions. Staleness is judged against a fixed
// heartbeat window; workers that go silent past it are swept into the error
// state.
type Registry struct {
	store      sessionStore
	publisher  *events.Publisher
	logger     logger.Logger
	staleAfter time.Duration
}

func NewRegistry(store sessionStore, publisher *events.Publisher, log logger.Logger, staleAfter time.Duration) *Registry {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Registry{
		store:      store,
		publisher:  publisher,
		logger:     log,
		staleAfter: staleAfter,
	}
}

// Register creates a session for a starting worker and returns it with its
// assigned session identifier.
func (r *Registry) Register(ctx context.Context, websiteID *int64, systemInfo models.JSONMap) (*models.BotSession, error) {
	session := &models.BotSession{
		WebsiteID:  websiteID,
		SystemInfo: systemInfo,
	}
	if err := r.store.Register(ctx, session); err != nil {
		return nil, err
	}

	r.logger.Info("Bot session registered",
		logger.String("session_id", session.SessionID),
	)
	r.publisher.PublishAsync(events.NewSessionRegisteredEvent(session.SessionID))

	return session, nil
}

// Get returns one session by its identifier.
func (r *Registry) Get(ctx context.Context, sessionID string) (*models.BotSession, error) {
	return r.store.GetBySessionID(ctx, sessionID)
}

// Active lists sessions still counted as live.
func (r *Registry) Active(ctx context.Context) ([]*models.BotSession, error) {
	return r.store.ListActive(ctx)
}

// UpdateStatus applies a worker-reported status change.
func (r *Registry) UpdateStatus(ctx context.Context, sessionID, status string, lastError *string) (*models.BotSession, error) {
	if !models.IsValidSessionStatus(status) {
		return nil, fmt.Errorf("invalid session status %q", status)
	}
	return r.store.UpdateStatus(ctx, sessionID, status, lastError)
}

// HeartbeatResult is what a heartbeating worker gets back: its refreshed
// session plus whether it must shut down.
type HeartbeatResult struct {
	Session    *models.BotSession `json:"session"`
	ShouldStop bool               `json:"should_stop"`
}

// Heartbeat refreshes a session's liveness and merges reported system info.
// The response tells the worker whether a stop was requested for it.
func (r *Registry) Heartbeat(ctx context.Context, sessionID string, systemInfo models.JSONMap) (*HeartbeatResult, error) {
	session, err := r.store.Heartbeat(ctx, sessionID, systemInfo)
	if err != nil {
		return nil, err
	}
	return &HeartbeatResult{
		Session:    session,
		ShouldStop: session.ShouldStop(),
	}, nil
}

// RecordCompletion counts one finished entry against the session.
func (r *Registry) RecordCompletion(ctx context.Context, sessionID string, success bool) (*models.BotSession, error) {
	return r.store.RecordCompletion(ctx, sessionID, success)
}

// CleanupStale sweeps sessions whose heartbeat is older than the staleness
// window and returns how many were errored out.
func (r *Registry) CleanupStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.staleAfter)
	swept, err := r.store.SweepStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		r.logger.Warn("Swept stale bot sessions",
			logger.Int64("count", swept),
			logger.Duration("stale_after", r.staleAfter),
		)
		r.publisher.PublishAsync(events.NewSessionsSweptEvent(swept))
	}

	return swept, nil
}

// Unregister forces a session into the stopped state. The row is kept: its
// counters remain queryable and a worker still heartbeating against the
// session sees should_stop on its next beat.
func (r *Registry) Unregister(ctx context.Context, sessionID string) (*models.BotSession, error) {
	session, err := r.store.UpdateStatus(ctx, sessionID, models.SessionStatusStopped, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Bot session unregistered",
		logger.String("session_id", sessionID),
	)

	return session, nil
}
