package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/dispatch"
	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/importer"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metrics"
	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/repository"
)

// JobHandler exposes the data entry lifecycle to workers: claiming work,
// reporting outcomes and submitting new batches.
type JobHandler struct {
	entries    *repository.EntryRepository
	websites   *repository.WebsiteRepository
	dispatcher *dispatch.Service
	publisher  *events.Publisher
	metrics    *metrics.Metrics
	logger     logger.Logger
}

func NewJobHandler(
	entries *repository.EntryRepository,
	websites *repository.WebsiteRepository,
	dispatcher *dispatch.Service,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *JobHandler {
	return &JobHandler{
		entries:    entries,
		websites:   websites,
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    m,
		logger:     log,
	}
}

func entryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid entry id")
		return 0, false
	}
	return id, true
}

// Next claims the next ready entry: the single highest-priority, oldest
// pending one. It is returned still pending; the worker confirms pickup via
// the processing endpoint.
func (h *JobHandler) Next(c *gin.Context) {
	ready, err := h.entries.NextReady(c.Request.Context(), 1)
	if err != nil {
		h.logger.Error("Failed to select next entry", logger.Error(err))
		respondFailure(c, err)
		return
	}
	if len(ready) == 0 {
		respondMessage(c, "no entries ready", nil)
		return
	}
	respondOK(c, ready[0])
}

func (h *JobHandler) GetByID(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.GetByID(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, entry)
}

// MarkProcessing confirms a worker picked the entry up. Every call counts an
// attempt, including repeated calls for the same entry.
func (h *JobHandler) MarkProcessing(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.MarkProcessing(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, entry)
}

type successRequest struct {
	Result models.JSONMap `json:"result"`
}

func (h *JobHandler) MarkSuccess(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	var req successRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.entries.MarkSuccess(c.Request.Context(), id, req.Result)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.EntriesCompleted.WithLabelValues(entry.Status).Inc()
	h.publisher.PublishAsync(events.NewEntryCompletedEvent(entry.ID, entry.Status))

	respondOK(c, entry)
}

type failedRequest struct {
	Error string `json:"error"`
}

// MarkFailed records a failed attempt. The entry only lands in failed once
// its retry budget is gone; the response carries the resulting status so the
// worker can tell.
func (h *JobHandler) MarkFailed(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	var req failedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Error == "" {
		req.Error = "unknown error"
	}

	entry, err := h.entries.MarkFailed(c.Request.Context(), id, req.Error)
	if err != nil {
		respondFailure(c, err)
		return
	}

	if entry.Status == models.EntryStatusFailed {
		h.metrics.EntriesCompleted.WithLabelValues(entry.Status).Inc()
		h.publisher.PublishAsync(events.NewEntryCompletedEvent(entry.ID, entry.Status))
	}

	respondOK(c, entry)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.Cancel(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.EntriesCompleted.WithLabelValues(entry.Status).Inc()

	respondOK(c, entry)
}

func (h *JobHandler) Retry(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.Retry(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, entry)
}

// Stats returns entry counts per status, optionally scoped by website_id.
func (h *JobHandler) Stats(c *gin.Context) {
	var websiteID *int64
	if raw := c.Query("website_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid website_id")
			return
		}
		websiteID = &id
	}

	stats, err := h.entries.Stats(c.Request.Context(), websiteID)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, stats)
}

type batchEntryRequest struct {
	Identifier  string         `json:"identifier" binding:"required"`
	Data        models.JSONMap `json:"data"`
	Priority    int            `json:"priority"`
	MaxAttempts int            `json:"max_attempts"`
	ScheduledAt *time.Time     `json:"scheduled_at"`
}

type batchRequest struct {
	WebsiteSlug string              `json:"websiteSlug" binding:"required"`
	Entries     []batchEntryRequest `json:"entries" binding:"required,min=1"`
}

// CreateBatch stores a group of new entries for one website. All entries are
// created or none are.
func (h *JobHandler) CreateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid batch payload: "+err.Error())
		return
	}

	website, err := h.websites.GetBySlug(c.Request.Context(), req.WebsiteSlug)
	if err != nil {
		respondFailure(c, err)
		return
	}

	entries := make([]*models.DataEntry, 0, len(req.Entries))
	for _, item := range req.Entries {
		entries = append(entries, &models.DataEntry{
			WebsiteID:   website.ID,
			Identifier:  item.Identifier,
			Data:        item.Data,
			Priority:    item.Priority,
			MaxAttempts: item.MaxAttempts,
			ScheduledAt: item.ScheduledAt,
		})
	}

	if err := h.entries.CreateBatch(c.Request.Context(), entries); err != nil {
		h.logger.Error("Batch create failed",
			logger.String("website", website.Slug),
			logger.Int("entries", len(entries)),
			logger.Error(err),
		)
		respondFailure(c, err)
		return
	}

	h.logger.Info("Batch created",
		logger.String("website", website.Slug),
		logger.Int("entries", len(entries)),
	)

	respondCreated(c, gin.H{"created": len(entries)})
}

// Import bulk-creates entries from an uploaded Excel workbook. Valid rows are
// stored even when others fail validation; per-row errors come back in the
// response.
func (h *JobHandler) Import(c *gin.Context) {
	slug := c.PostForm("websiteSlug")
	if slug == "" {
		respondError(c, http.StatusBadRequest, "websiteSlug is required")
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	website, err := h.websites.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		respondFailure(c, err)
		return
	}

	rows, rowErrors, err := importer.Parse(file)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	entries, err := importer.ToEntries(website.ID, rows)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if len(entries) > 0 {
		if err := h.entries.CreateBatch(c.Request.Context(), entries); err != nil {
			h.logger.Error("Import batch create failed",
				logger.String("website", website.Slug),
				logger.Int("entries", len(entries)),
				logger.Error(err),
			)
			respondFailure(c, err)
			return
		}
	}

	h.logger.Info("Import completed",
		logger.String("website", website.Slug),
		logger.Int("created", len(entries)),
		logger.Int("rejected", len(rowErrors)),
	)

	respondCreated(c, gin.H{
		"created": len(entries),
		"errors":  rowErrors,
	})
}

// Dispatch runs one dispatch cycle immediately, scoped to a single website
// when website_id is given.
func (h *JobHandler) Dispatch(c *gin.Context) {
	start := time.Now()

	var (
		result *dispatch.Result
		err    error
	)
	if raw := c.Query("website_id"); raw != "" {
		websiteID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			respondError(c, http.StatusBadRequest, "invalid website_id")
			return
		}
		result, err = h.dispatcher.DispatchWebsite(c.Request.Context(), websiteID)
	} else {
		result, err = h.dispatcher.Dispatch(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("Dispatch cycle failed", logger.Error(err))
		respondFailure(c, err)
		return
	}

	h.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	for website, count := range result.PerWebsite {
		h.metrics.EntriesDispatched.WithLabelValues(website).Add(float64(count))
	}

	respondOK(c, result)
}
