// Package bootstrap handles application initialization and lifecycle
// management for the control plane service.
package bootstrap

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/logger"
)

const version = "dev"

// Start initializes and runs the application.
func Start() error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Phase 2: Setup database
	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	// Phase 3: Setup event publisher (optional)
	publisher := SetupEventPublisher(cfg, log)

	// Phase 4: Build services and HTTP server
	server, services := SetupHTTPServer(cfg, db, publisher, log)

	// Phase 5: Background jobs
	if cfg.Scheduler.Enabled {
		sched, schedErr := SetupScheduler(cfg, services, log)
		if schedErr != nil {
			return fmt.Errorf("failed to create scheduler: %w", schedErr)
		}
		sched.Start()
		defer sched.Stop()
	}

	if runErr := server.Run(); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
