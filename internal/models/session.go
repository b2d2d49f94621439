package models

import "time"

// Bot session statuses as reported by worker processes.
const (
	SessionStatusIdle    = "idle"
	SessionStatusRunning = "running"
	SessionStatusPaused  = "paused"
	SessionStatusStopped = "stopped"
	SessionStatusError   = "error"
)

// SessionStatuses lists every valid session status.
var SessionStatuses = []string{
	SessionStatusIdle,
	SessionStatusRunning,
	SessionStatusPaused,
	SessionStatusStopped,
	SessionStatusError,
}

// IsValidSessionStatus reports whether s is a known session status.
func IsValidSessionStatus(s string) bool {
	for _, status := range SessionStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// StaleSessionError is the error message recorded on sessions that stop
// heartbeating and get swept into the error state.
const StaleSessionError = "Session became unresponsive"

// BotSession tracks a single worker process lifecycle. Liveness is inferred
// from LastHeartbeatAt; sessions that go quiet past the staleness window are
// forced into the error state by the sweep.
type BotSession struct {
	ID              int64      `json:"id" db:"id"`
	SessionID       string     `json:"session_id" db:"session_id"`
	WebsiteID       *int64     `json:"website_id,omitempty" db:"website_id"`
	Status          string     `json:"status" db:"status"`
	ProcessedCount  int        `json:"processed_count" db:"processed_count"`
	SuccessCount    int        `json:"success_count" db:"success_count"`
	FailureCount    int        `json:"failure_count" db:"failure_count"`
	LastError       *string    `json:"last_error,omitempty" db:"last_error"`
	SystemInfo      JSONMap    `json:"system_info,omitempty" db:"system_info"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty" db:"stopped_at"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty" db:"last_heartbeat_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the session counts toward active worker state.
// Stopped and errored sessions are excluded.
func (s *BotSession) IsActive() bool {
	return s.Status == SessionStatusIdle ||
		s.Status == SessionStatusRunning ||
		s.Status == SessionStatusPaused
}

// IsStale reports whether the session's last heartbeat is older than the
// staleness window at the given time. A session that never heartbeated is
// judged from its creation time.
func (s *BotSession) IsStale(now time.Time, window time.Duration) bool {
	last := s.CreatedAt
	if s.LastHeartbeatAt != nil {
		last = *s.LastHeartbeatAt
	}
	return now.Sub(last) > window
}

// ShouldStop reports whether a heartbeating worker must shut itself down.
// Only an explicit stop requests termination; error state does not, since the
// worker may still be draining in-flight work.
func (s *BotSession) ShouldStop() bool {
	return s.Status == SessionStatusStopped
}
