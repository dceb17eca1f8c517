// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/hutchutchutch/fmath-sub002/internal/application/services"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/collector"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/learner"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/database"
	metricsrepo "github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/metrics"
	sessionrepo "github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/security"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	SessionService *services.SessionService
	DeltaService   *services.DeltaService
	Emitter        *services.AnalyticsEmitter
	AuthService    *services.AuthService

	// Infrastructure
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
	DB          *database.DB
}

// NewContainer creates and wires all singleton services
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())

	db, err := database.Connect(logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	sessionStore := sessionrepo.NewSQLSessionRepository(db, logger)
	counterStore := metricsrepo.NewSQLCounterRepository(db, logger)

	signer := security.NewSigner(config.JWTSecret, config.SignerTokenTTL)
	sink := collector.NewClient(config.CollectorURL, config.CollectorTimeout, signer, logger)
	learnerClient := learner.NewClient(config.ProgressURL, config.ProgressTimeout, logger)

	emitter := services.NewAnalyticsEmitter(sink, learnerClient, logger, perfTracker)
	deltaService := services.NewDeltaService(counterStore, emitter, logger, perfTracker)
	sessionService := services.NewSessionService(sessionStore, deltaService, emitter, learnerClient, logger, perfTracker)
	authService := services.NewAuthService(logger)

	return &Container{
		SessionService: sessionService,
		DeltaService:   deltaService,
		Emitter:        emitter,
		AuthService:    authService,
		Logger:         logger,
		PerfTracker:    perfTracker,
		DB:             db,
	}, nil
}

// Close releases infrastructure resources held by the container.
func (c *Container) Close() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	if c.Logger != nil {
		return c.Logger.Close()
	}
	return nil
}
