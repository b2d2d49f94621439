package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/handlers"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metrics"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Websites *handlers.WebsiteHandler
	Jobs     *handlers.JobHandler
	Logs     *handlers.JobLogHandler
	Sessions *handlers.SessionHandler
	Pool     *handlers.PoolHandler
	Control  *handlers.ControlHandler
}

func NewRouter(h Handlers, corsOrigins []string, log logger.Logger) *gin.Engine {
	router := gin.New()

	// CORS middleware - must be first
	router.Use(corsMiddleware(corsOrigins))

	// Middleware
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1
	v1 := router.Group("/api/v1")

	// Configuration served to workers and the dashboard
	config := v1.Group("/config")
	config.GET("/websites", h.Websites.ListActive)
	config.GET("/websites/all", h.Websites.ListAll)
	config.GET("/websites/:id", h.Websites.GetByID)
	config.GET("/websites/slug/:slug", h.Websites.GetBySlug)
	config.POST("/websites/inspect", h.Websites.Inspect)
	config.GET("/captcha-services", h.Pool.ListCaptchaServices)
	config.GET("/proxies", h.Pool.ListProxies)

	// Entry lifecycle
	jobs := v1.Group("/jobs")
	jobs.GET("/next", h.Jobs.Next)
	jobs.GET("/stats", h.Jobs.Stats)
	jobs.POST("/batch", h.Jobs.CreateBatch)
	jobs.POST("/import", h.Jobs.Import)
	jobs.POST("/dispatch", h.Jobs.Dispatch)
	jobs.GET("/:id", h.Jobs.GetByID)
	jobs.POST("/:id/processing", h.Jobs.MarkProcessing)
	jobs.POST("/:id/success", h.Jobs.MarkSuccess)
	jobs.POST("/:id/failed", h.Jobs.MarkFailed)
	jobs.POST("/:id/cancel", h.Jobs.Cancel)
	jobs.POST("/:id/retry", h.Jobs.Retry)

	// Worker log feed
	logs := v1.Group("/logs")
	logs.GET("/recent", h.Logs.Recent)
	logs.POST("/start", h.Logs.Start)
	logs.POST("/step", h.Logs.Step)
	logs.POST("/success", h.Logs.Success)
	logs.POST("/failure", h.Logs.Failure)

	// Session lifecycle
	sessions := v1.Group("/sessions")
	sessions.GET("/active", h.Sessions.Active)
	sessions.POST("/register", h.Sessions.Register)
	sessions.POST("/cleanup-stale", h.Sessions.CleanupStale)
	sessions.GET("/:sid", h.Sessions.Get)
	sessions.POST("/:sid/status", h.Sessions.UpdateStatus)
	sessions.POST("/:sid/completion", h.Sessions.RecordCompletion)
	sessions.POST("/:sid/heartbeat", h.Sessions.Heartbeat)
	sessions.DELETE("/:sid", h.Sessions.Unregister)

	// Proxy rotation
	proxy := v1.Group("/proxy")
	proxy.GET("/next", h.Pool.NextProxy)
	proxy.POST("/:id/success", h.Pool.ProxySuccess)
	proxy.POST("/:id/failure", h.Pool.ProxyFailure)

	// CAPTCHA services
	captcha := v1.Group("/captcha")
	captcha.GET("/default", h.Pool.DefaultCaptchaService)
	captcha.POST("/:id/success", h.Pool.CaptchaSuccess)
	captcha.POST("/:id/failure", h.Pool.CaptchaFailure)

	// Engine control surface
	ctrl := v1.Group("/control")
	ctrl.GET("/status", h.Control.Status)
	ctrl.GET("/engine-health", h.Control.EngineHealth)
	ctrl.POST("/start", h.Control.Start)
	ctrl.POST("/stop", h.Control.Stop)
	ctrl.POST("/pause", h.Control.Pause)
	ctrl.POST("/resume", h.Control.Resume)
	ctrl.POST("/reload", h.Control.Reload)
	ctrl.POST("/force-reload", h.Control.ForceReload)
	ctrl.POST("/sync", h.Control.Sync)
	ctrl.POST("/queues/clear", h.Control.ClearAllQueues)
	ctrl.POST("/websites/:id/enable", h.Control.EnableWebsite)
	ctrl.POST("/websites/:id/disable", h.Control.DisableWebsite)
	ctrl.POST("/websites/:id/pause", h.Control.PauseWebsite)
	ctrl.POST("/websites/:id/resume", h.Control.ResumeWebsite)
	ctrl.POST("/websites/:id/worker", h.Control.AddWorker)
	ctrl.DELETE("/websites/:id/worker", h.Control.RemoveWorker)
	ctrl.POST("/websites/:id/queue/clear", h.Control.ClearWebsiteQueue)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
			c.Header("Access-Control-Allow-Headers",
				"Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", statusCode),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", duration),
		)
	}
}
