package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metadata"
	"github.com/jonesrussell/gobotctl/internal/repository"
)

// WebsiteHandler serves website configuration to workers and the dashboard.
type WebsiteHandler struct {
	repo      *repository.WebsiteRepository
	extractor *metadata.Extractor
	logger    logger.Logger
}

func NewWebsiteHandler(repo *repository.WebsiteRepository, extractor *metadata.Extractor, log logger.Logger) *WebsiteHandler {
	return &WebsiteHandler{
		repo:      repo,
		extractor: extractor,
		logger:    log,
	}
}

// ListActive returns active websites only. This is what the engine pulls on
// reload.
func (h *WebsiteHandler) ListActive(c *gin.Context) {
	websites, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list active websites", logger.Error(err))
		respondFailure(c, err)
		return
	}
	respondOK(c, websites)
}

// ListAll returns every website including deactivated ones.
func (h *WebsiteHandler) ListAll(c *gin.Context) {
	websites, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list websites", logger.Error(err))
		respondFailure(c, err)
		return
	}
	respondOK(c, websites)
}

func (h *WebsiteHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid website id")
		return
	}

	website, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, website)
}

type inspectRequest struct {
	URL string `json:"url" binding:"required"`
}

// Inspect fetches a candidate site and suggests registration values for the
// dashboard form: name, slug, form fields, captcha and login hints.
func (h *WebsiteHandler) Inspect(c *gin.Context) {
	var req inspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.extractor.Inspect(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Error("Website inspection failed",
			logger.String("url", req.URL),
			logger.Error(err),
		)
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, result)
}

// GetBySlug returns the full worker configuration for one website, the
// payload a worker needs to operate the site.
func (h *WebsiteHandler) GetBySlug(c *gin.Context) {
	website, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, website.FullConfig())
}
