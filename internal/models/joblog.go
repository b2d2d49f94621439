package models

import "time"

// Job log levels and event names recorded by workers during entry processing.
const (
	JobLogLevelInfo    = "info"
	JobLogLevelWarning = "warning"
	JobLogLevelError   = "error"

	JobLogEventStart   = "start"
	JobLogEventStep    = "step"
	JobLogEventSuccess = "success"
	JobLogEventFailure = "failure"
)

// JobLog is a single structured log line emitted by a worker while processing
// a data entry. Logs are append-only and queried most-recent-first.
type JobLog struct {
	ID          int64     `json:"id" db:"id"`
	DataEntryID int64     `json:"data_entry_id" db:"data_entry_id"`
	SessionID   *string   `json:"session_id,omitempty" db:"session_id"`
	Level       string    `json:"level" db:"level"`
	Event       string    `json:"event" db:"event"`
	Message     string    `json:"message" db:"message"`
	Context     JSONMap   `json:"context,omitempty" db:"context"`
	DurationMs  *int      `json:"duration_ms,omitempty" db:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
