package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metrics"
	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/sessions"
)

// SessionHandler is the worker-facing session lifecycle API.
type SessionHandler struct {
	registry *sessions.Registry
	metrics  *metrics.Metrics
	logger   logger.Logger
}

func NewSessionHandler(registry *sessions.Registry, m *metrics.Metrics, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		metrics:  m,
		logger:   log,
	}
}

type registerRequest struct {
	WebsiteID  *int64         `json:"website_id"`
	SystemInfo models.JSONMap `json:"system_info"`
}

func (h *SessionHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.registry.Register(c.Request.Context(), req.WebsiteID, req.SystemInfo)
	if err != nil {
		h.logger.Error("Session registration failed", logger.Error(err))
		respondFailure(c, err)
		return
	}

	respondCreated(c, session)
}

func (h *SessionHandler) Active(c *gin.Context) {
	active, err := h.registry.Active(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ActiveSessions.Set(float64(len(active)))

	respondOK(c, active)
}

func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.registry.Get(c.Request.Context(), c.Param("sid"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, session)
}

type statusRequest struct {
	Status    string  `json:"status" binding:"required"`
	LastError *string `json:"last_error"`
}

func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.registry.UpdateStatus(c.Request.Context(), c.Param("sid"), req.Status, req.LastError)
	if err != nil {
		if !models.IsValidSessionStatus(req.Status) {
			respondError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondFailure(c, err)
		return
	}
	respondOK(c, session)
}

type heartbeatRequest struct {
	SystemInfo models.JSONMap `json:"system_info"`
}

// Heartbeat refreshes liveness. The response carries should_stop so workers
// learn about a requested shutdown on their next beat.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.registry.Heartbeat(c.Request.Context(), c.Param("sid"), req.SystemInfo)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.Heartbeats.Inc()

	respondOK(c, result)
}

type completionRequest struct {
	Success bool `json:"success"`
}

func (h *SessionHandler) RecordCompletion(c *gin.Context) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.registry.RecordCompletion(c.Request.Context(), c.Param("sid"), req.Success)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, session)
}

// CleanupStale sweeps sessions past the heartbeat window into the error
// state. Also runs on a schedule; this endpoint exists for manual sweeps.
func (h *SessionHandler) CleanupStale(c *gin.Context) {
	swept, err := h.registry.CleanupStale(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.StaleSwept.Add(float64(swept))

	respondMessage(c, "stale sessions cleaned up", gin.H{"swept": swept})
}

// Unregister ends a session from the worker side. The session is forced to
// stopped rather than removed so its counters survive.
func (h *SessionHandler) Unregister(c *gin.Context) {
	session, err := h.registry.Unregister(c.Request.Context(), c.Param("sid"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondMessage(c, "session unregistered", session)
}
