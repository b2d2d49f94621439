package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metrics"
	"github.com/jonesrussell/gobotctl/internal/pool"
)

// PoolHandler serves proxy and CAPTCHA service selection to workers.
type PoolHandler struct {
	selector *pool.Selector
	metrics  *metrics.Metrics
	logger   logger.Logger
}

func NewPoolHandler(selector *pool.Selector, m *metrics.Metrics, log logger.Logger) *PoolHandler {
	return &PoolHandler{
		selector: selector,
		metrics:  m,
		logger:   log,
	}
}

func poolID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func parseExcludeIDs(c *gin.Context) ([]int64, bool) {
	raw := c.Query("exclude_ids")
	if raw == "" {
		return nil, true
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid exclude_ids")
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// NextProxy hands out the best available proxy. Workers list proxies they
// want skipped via exclude_ids, comma separated.
func (h *PoolHandler) NextProxy(c *gin.Context) {
	excludeIDs, ok := parseExcludeIDs(c)
	if !ok {
		return
	}

	proxy, err := h.selector.NextProxy(c.Request.Context(), excludeIDs)
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, gin.H{
		"proxy": proxy,
		"url":   proxy.URL(),
	})
}

// ListProxies returns the active rotation.
func (h *PoolHandler) ListProxies(c *gin.Context) {
	proxies, err := h.selector.ActiveProxies(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, proxies)
}

func (h *PoolHandler) ProxySuccess(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}

	proxy, err := h.selector.RecordProxySuccess(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ProxyOutcomes.WithLabelValues("success").Inc()

	respondOK(c, proxy)
}

func (h *PoolHandler) ProxyFailure(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}

	proxy, err := h.selector.RecordProxyFailure(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.ProxyOutcomes.WithLabelValues("failure").Inc()

	respondOK(c, proxy)
}

// ListCaptchaServices returns the configured active services, default first.
func (h *PoolHandler) ListCaptchaServices(c *gin.Context) {
	services, err := h.selector.ActiveCaptchaServices(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, services)
}

// DefaultCaptchaService returns the service workers should solve with.
func (h *PoolHandler) DefaultCaptchaService(c *gin.Context) {
	service, err := h.selector.DefaultCaptchaService(c.Request.Context())
	if err != nil {
		respondFailure(c, err)
		return
	}
	respondOK(c, service)
}

type captchaSuccessRequest struct {
	SolveTime float64 `json:"solve_time"`
}

func (h *PoolHandler) CaptchaSuccess(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}

	var req captchaSuccessRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	service, err := h.selector.RecordCaptchaSuccess(c.Request.Context(), id, req.SolveTime)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.CaptchaOutcomes.WithLabelValues("success").Inc()

	respondOK(c, service)
}

func (h *PoolHandler) CaptchaFailure(c *gin.Context) {
	id, ok := poolID(c)
	if !ok {
		return
	}

	service, err := h.selector.RecordCaptchaFailure(c.Request.Context(), id)
	if err != nil {
		respondFailure(c, err)
		return
	}

	h.metrics.CaptchaOutcomes.WithLabelValues("failure").Inc()

	respondOK(c, service)
}
