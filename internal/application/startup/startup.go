// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hutchutchutch/fmath-sub002/internal/application/container"
	"github.com/hutchutchutch/fmath-sub002/internal/presentation/http/server"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	// Step 1: Create dependency injection container (logger, database,
	// repositories, collaborator clients, services)
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("container initialization failed: %w", err)
	}
	defer appContainer.Close()

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 2: Start HTTP server
	startServerTime := time.Now()
	port := config.Port
	httpServer := server.New(port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 3: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
