package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gobotctl/internal/models"
)

// StreamName is the Redis stream all control plane events go to.
const StreamName = "botctl:events"

// EventType identifies what happened.
type EventType string

const (
	EventBatchDispatched   EventType = "jobs.batch_dispatched"
	EventEntryCompleted    EventType = "entry.completed"
	EventSessionRegistered EventType = "session.registered"
	EventSessionsSwept     EventType = "sessions.swept_stale"
	EventWebsiteEnabled    EventType = "website.enabled"
	EventWebsiteDisabled   EventType = "website.disabled"
	EventProxyDisabled     EventType = "proxy.auto_disabled"
	EventControlAction     EventType = "control.action"
)

// Event is one control plane occurrence published to the stream. Optional
// fields are set only where they apply.
type Event struct {
	EventID     uuid.UUID      `json:"event_id"`
	EventType   EventType      `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	WebsiteSlug string         `json:"website_slug,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	EntryID     int64          `json:"entry_id,omitempty"`
	Payload     models.JSONMap `json:"payload,omitempty"`
}

// NewBatchDispatchedEvent records a batch handed to the engine.
func NewBatchDispatchedEvent(websiteSlug string, count int) Event {
	return Event{
		EventType:   EventBatchDispatched,
		WebsiteSlug: websiteSlug,
		Payload:     models.JSONMap{"count": count},
	}
}

// NewEntryCompletedEvent records a terminal entry outcome.
func NewEntryCompletedEvent(entryID int64, status string) Event {
	return Event{
		EventType: EventEntryCompleted,
		EntryID:   entryID,
		Payload:   models.JSONMap{"status": status},
	}
}

// NewSessionRegisteredEvent records a new worker session.
func NewSessionRegisteredEvent(sessionID string) Event {
	return Event{
		EventType: EventSessionRegistered,
		SessionID: sessionID,
	}
}

// NewSessionsSweptEvent records a stale session sweep.
func NewSessionsSweptEvent(count int64) Event {
	return Event{
		EventType: EventSessionsSwept,
		Payload:   models.JSONMap{"count": count},
	}
}

// NewWebsiteToggledEvent records a website activation change.
func NewWebsiteToggledEvent(websiteSlug string, enabled bool) Event {
	eventType := EventWebsiteDisabled
	if enabled {
		eventType = EventWebsiteEnabled
	}
	return Event{
		EventType:   eventType,
		WebsiteSlug: websiteSlug,
	}
}

// NewProxyDisabledEvent records a proxy pulled from rotation by the health
// policy.
func NewProxyDisabledEvent(proxyID int64, successRate float64) Event {
	return Event{
		EventType: EventProxyDisabled,
		Payload:   models.JSONMap{"proxy_id": proxyID, "success_rate": successRate},
	}
}

// NewControlActionEvent records a fleet-wide control action.
func NewControlActionEvent(action string, payload models.JSONMap) Event {
	return Event{
		EventType: EventControlAction,
		Payload:   mergePayload(payload, "action", action),
	}
}

func mergePayload(payload models.JSONMap, key string, value any) models.JSONMap {
	if payload == nil {
		payload = models.JSONMap{}
	}
	payload[key] = value
	return payload
}
