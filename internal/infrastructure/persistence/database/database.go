// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
}

// NewConnection establishes a new database connection for the specified driver.
func NewConnection(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	logger.Database().Info("Database connection established", "driverName", driverName, "duration", time.Since(start))

	return &DB{db}, nil
}

// Connect opens the service database: a remote Turso instance when
// TURSO_DATABASE_URL is configured, the local sqlite file otherwise.
func Connect(logger *logging.ChanneledLogger) (*DB, error) {
	driverName := "sqlite3"
	dataSourceName := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", config.DBPath)

	if config.TursoDatabaseURL != "" {
		driverName = "libsql"
		dataSourceName = fmt.Sprintf("%s?authToken=%s", config.TursoDatabaseURL, config.TursoAuthToken)
	}

	db, err := NewConnectionWithLogger(driverName, dataSourceName, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)

	return db, nil
}

// CheckAndLogSlowQuery checks if a query duration exceeds the configured
// threshold and logs it using the slow query channel if it does.
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration) {
	if duration > config.SlowQueryThreshold {
		logger.LogSlowQuery(query, duration)
	}
}
