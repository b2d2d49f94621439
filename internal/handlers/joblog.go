package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/repository"
)

// JobLogHandler records structured worker log lines per lifecycle event and
// serves the recent-log feed.
type JobLogHandler struct {
	repo   *repository.JobLogRepository
	logger logger.Logger
}

func NewJobLogHandler(repo *repository.JobLogRepository, log logger.Logger) *JobLogHandler {
	return &JobLogHandler{
		repo:   repo,
		logger: log,
	}
}

type jobLogRequest struct {
	DataEntryID int64          `json:"data_entry_id" binding:"required"`
	SessionID   *string        `json:"session_id"`
	Message     string         `json:"message"`
	Context     models.JSONMap `json:"context"`
	DurationMs  *int           `json:"duration_ms"`
}

func (h *JobLogHandler) record(c *gin.Context, event, level string) {
	var req jobLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	jobLog := &models.JobLog{
		DataEntryID: req.DataEntryID,
		SessionID:   req.SessionID,
		Level:       level,
		Event:       event,
		Message:     req.Message,
		Context:     req.Context,
		DurationMs:  req.DurationMs,
	}

	if err := h.repo.Create(c.Request.Context(), jobLog); err != nil {
		h.logger.Error("Failed to record job log",
			logger.Int64("entry_id", req.DataEntryID),
			logger.String("event", event),
			logger.Error(err),
		)
		respondFailure(c, err)
		return
	}

	respondCreated(c, jobLog)
}

func (h *JobLogHandler) Start(c *gin.Context) {
	h.record(c, models.JobLogEventStart, models.JobLogLevelInfo)
}

func (h *JobLogHandler) Step(c *gin.Context) {
	h.record(c, models.JobLogEventStep, models.JobLogLevelInfo)
}

func (h *JobLogHandler) Success(c *gin.Context) {
	h.record(c, models.JobLogEventSuccess, models.JobLogLevelInfo)
}

func (h *JobLogHandler) Failure(c *gin.Context) {
	h.record(c, models.JobLogEventFailure, models.JobLogLevelError)
}

// Recent returns the newest log lines, filterable by entry, session and
// level.
func (h *JobLogHandler) Recent(c *gin.Context) {
	filter := repository.RecentFilter{
		SessionID: c.Query("session_id"),
		Level:     c.Query("level"),
	}

	if raw := c.Query("entry_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid entry_id")
			return
		}
		filter.DataEntryID = id
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.repo.Recent(c.Request.Context(), filter)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, logs)
}
