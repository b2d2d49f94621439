package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/control"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metrics"
)

// ControlHandler exposes the engine control surface to the dashboard. Only
// one control action runs at a time; overlapping requests get a 409.
type ControlHandler struct {
	gateway *control.Gateway
	metrics *metrics.Metrics
	logger  logger.Logger
}

func NewControlHandler(gateway *control.Gateway, m *metrics.Metrics, log logger.Logger) *ControlHandler {
	return &ControlHandler{
		gateway: gateway,
		metrics: m,
		logger:  log,
	}
}

func websiteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid website id")
		return 0, false
	}
	return id, true
}

// Status returns the aggregated engine, website and session snapshot.
func (h *ControlHandler) Status(c *gin.Context) {
	overview, err := h.gateway.Status(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, overview)
}

// EngineHealth probes engine reachability.
func (h *ControlHandler) EngineHealth(c *gin.Context) {
	if err := h.gateway.Health(c.Request.Context()); err != nil {
		respondFailure(c, err)
		return
	}
	respondMessage(c, "engine healthy", nil)
}

func (h *ControlHandler) EnableWebsite(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	status, err := h.gateway.EnableWebsite(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Enable website failed", logger.Int64("website_id", id), logger.Error(err))
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("enable_website").Inc()

	respondOK(c, status)
}

func (h *ControlHandler) DisableWebsite(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	status, err := h.gateway.DisableWebsite(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("disable_website").Inc()

	respondOK(c, status)
}

type addWorkerRequest struct {
	Concurrency int `json:"concurrency"`
}

func (h *ControlHandler) AddWorker(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	var req addWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Concurrency == 0 {
		req.Concurrency = 1
	}

	if err := h.gateway.AddWorker(c.Request.Context(), id, req.Concurrency); err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("add_worker").Inc()

	respondMessage(c, "worker created", nil)
}

func (h *ControlHandler) RemoveWorker(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	if err := h.gateway.RemoveWorker(c.Request.Context(), id); err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("remove_worker").Inc()

	respondMessage(c, "worker removed", nil)
}

func (h *ControlHandler) PauseWebsite(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	if err := h.gateway.PauseWebsite(c.Request.Context(), id); err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("pause_website").Inc()

	respondMessage(c, "website worker paused", nil)
}

func (h *ControlHandler) ResumeWebsite(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	if err := h.gateway.ResumeWebsite(c.Request.Context(), id); err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("resume_website").Inc()

	respondMessage(c, "website worker resumed", nil)
}

func (h *ControlHandler) Start(c *gin.Context) {
	if err := h.gateway.StartAll(c.Request.Context()); err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("start").Inc()

	respondMessage(c, "engine started", nil)
}

func (h *ControlHandler) Stop(c *gin.Context) {
	stopped, err := h.gateway.StopAll(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("stop").Inc()

	respondMessage(c, "engine stopped", gin.H{"sessions_stopped": stopped})
}

func (h *ControlHandler) Pause(c *gin.Context) {
	paused, err := h.gateway.PauseAll(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("pause").Inc()

	respondMessage(c, "engine paused", gin.H{"sessions_paused": paused})
}

func (h *ControlHandler) Resume(c *gin.Context) {
	resumed, err := h.gateway.ResumeAll(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("resume").Inc()

	respondMessage(c, "engine resumed", gin.H{"sessions_resumed": resumed})
}

func (h *ControlHandler) ClearWebsiteQueue(c *gin.Context) {
	id, ok := websiteID(c)
	if !ok {
		return
	}

	result, err := h.gateway.ClearWebsiteQueue(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("clear_queue").Inc()

	respondOK(c, result)
}

func (h *ControlHandler) ClearAllQueues(c *gin.Context) {
	result, err := h.gateway.ClearAllQueues(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("clear_all_queues").Inc()

	respondOK(c, result)
}

func (h *ControlHandler) Reload(c *gin.Context) {
	result, err := h.gateway.Reload(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("reload").Inc()

	respondOK(c, result)
}

func (h *ControlHandler) ForceReload(c *gin.Context) {
	result, err := h.gateway.ForceReload(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("force_reload").Inc()

	respondOK(c, result)
}

func (h *ControlHandler) Sync(c *gin.Context) {
	result, err := h.gateway.Sync(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ControlActions.WithLabelValues("sync").Inc()

	respondOK(c, result)
}
