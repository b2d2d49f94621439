package models

import "time"

// Data entry lifecycle statuses.
const (
	EntryStatusPending    = "pending"
	EntryStatusQueued     = "queued"
	EntryStatusProcessing = "processing"
	EntryStatusSuccess    = "success"
	EntryStatusFailed     = "failed"
	EntryStatusCancelled  = "cancelled"
)

// EntryStatuses lists every valid data entry status.
var EntryStatuses = []string{
	EntryStatusPending,
	EntryStatusQueued,
	EntryStatusProcessing,
	EntryStatusSuccess,
	EntryStatusFailed,
	EntryStatusCancelled,
}

// IsValidEntryStatus reports whether s is a known entry status.
func IsValidEntryStatus(s string) bool {
	for _, status := range EntryStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// DataEntry is a single unit of automation work. Entries move through the
// lifecycle pending -> queued -> processing -> success | failed, with failed
// attempts returning to pending while retry budget remains.
type DataEntry struct {
	ID            int64      `json:"id" db:"id"`
	WebsiteID     int64      `json:"website_id" db:"website_id"`
	Identifier    string     `json:"identifier" db:"identifier"`
	Data          JSONMap    `json:"data" db:"data"`
	Status        string     `json:"status" db:"status"`
	Priority      int        `json:"priority" db:"priority"`
	Attempts      int        `json:"attempts" db:"attempts"`
	MaxAttempts   int        `json:"max_attempts" db:"max_attempts"`
	LastError     *string    `json:"last_error,omitempty" db:"last_error"`
	Result        JSONMap    `json:"result,omitempty" db:"result"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsReady reports whether the entry is eligible for dispatch at the given
// time: pending and not scheduled for the future.
func (e *DataEntry) IsReady(now time.Time) bool {
	if e.Status != EntryStatusPending {
		return false
	}
	return e.ScheduledAt == nil || !e.ScheduledAt.After(now)
}

// HasRetryBudget reports whether another attempt is allowed after a failure.
// Attempts are counted when processing starts, so this is checked against the
// already-incremented value.
func (e *DataEntry) HasRetryBudget() bool {
	return e.Attempts < e.MaxAttempts
}

// FailureStatus returns the status a failed attempt lands in: failed once the
// retry budget is exhausted, otherwise back to pending for another try.
func (e *DataEntry) FailureStatus() string {
	if e.HasRetryBudget() {
		return EntryStatusPending
	}
	return EntryStatusFailed
}

// IsTerminal reports whether the entry has reached a final state.
func (e *DataEntry) IsTerminal() bool {
	return e.Status == EntryStatusSuccess ||
		e.Status == EntryStatusFailed ||
		e.Status == EntryStatusCancelled
}

// EntryStats summarizes entry counts per status for a website or globally.
type EntryStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Success    int64 `json:"success"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}
