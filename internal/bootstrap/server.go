package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/gobotctl/internal/api"
	"github.com/jonesrussell/gobotctl/internal/config"
	"github.com/jonesrussell/gobotctl/internal/control"
	"github.com/jonesrussell/gobotctl/internal/database"
	"github.com/jonesrussell/gobotctl/internal/dispatch"
	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/handlers"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/metadata"
	"github.com/jonesrussell/gobotctl/internal/metrics"
	"github.com/jonesrussell/gobotctl/internal/pool"
	"github.com/jonesrussell/gobotctl/internal/repository"
	"github.com/jonesrussell/gobotctl/internal/scheduler"
	"github.com/jonesrussell/gobotctl/internal/sessions"
)

const shutdownTimeout = 10 * time.Second

// Services holds the long-lived service objects shared between the HTTP
// layer and the background scheduler.
type Services struct {
	Registry   *sessions.Registry
	Dispatcher *dispatch.Service
}

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	server *http.Server
	logger logger.Logger
}

// SetupHTTPServer wires repositories, services and handlers into the HTTP
// server.
func SetupHTTPServer(
	cfg *config.Config,
	db *database.DB,
	publisher *events.Publisher,
	log logger.Logger,
) (*Server, *Services) {
	websiteRepo := repository.NewWebsiteRepository(db.DB(), log)
	entryRepo := repository.NewEntryRepository(db.DB(), log)
	sessionRepo := repository.NewSessionRepository(db.DB(), log)
	proxyRepo := repository.NewProxyRepository(db.DB(), log)
	captchaRepo := repository.NewCaptchaRepository(db.DB(), log)
	jobLogRepo := repository.NewJobLogRepository(db.DB(), log)

	engineClient := engine.NewClient(cfg.Engine.BaseURL, cfg.Engine.ConnectTimeout, log)

	registry := sessions.NewRegistry(sessionRepo, publisher, log, cfg.Sessions.StaleAfter)
	dispatcher := dispatch.NewService(
		entryRepo, websiteRepo, engineClient, publisher, log,
		cfg.Dispatch.BatchLimit, cfg.Dispatch.WebsiteBatchLimit,
	)
	selector := pool.NewSelector(proxyRepo, captchaRepo, publisher, log)
	gateway := control.NewGateway(engineClient, websiteRepo, sessionRepo, entryRepo, publisher, log)

	m := metrics.New()
	extractor := metadata.NewExtractor(log)

	router := api.NewRouter(api.Handlers{
		Websites: handlers.NewWebsiteHandler(websiteRepo, extractor, log),
		Jobs:     handlers.NewJobHandler(entryRepo, websiteRepo, dispatcher, publisher, m, log),
		Logs:     handlers.NewJobLogHandler(jobLogRepo, log),
		Sessions: handlers.NewSessionHandler(registry, m, log),
		Pool:     handlers.NewPoolHandler(selector, m, log),
		Control:  handlers.NewControlHandler(gateway, m, log),
	}, cfg.Server.CORSOrigins, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	server := &Server{
		server: httpServer,
		logger: log,
	}

	return server, &Services{
		Registry:   registry,
		Dispatcher: dispatcher,
	}
}

// SetupScheduler creates the cron runner for background jobs.
func SetupScheduler(cfg *config.Config, services *Services, log logger.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(cfg.Scheduler, services.Registry, services.Dispatcher, log)
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			logger.String("address", s.server.Addr),
			logger.Duration("read_timeout", s.server.ReadTimeout),
			logger.Duration("write_timeout", s.server.WriteTimeout),
		)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Info("Shutdown signal received", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}
