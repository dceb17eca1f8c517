// Package config provides centralized default values for the fmath session service
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

// loadEnvFile loads environment variables from .env file
func loadEnvFile() {
	envLoaded.Do(func() {
		loadEnvFileOnce()
	})
}

func loadEnvFileOnce() {
	file, err := os.Open(".env")
	if err != nil {
		// .env file is optional, don't error if it doesn't exist
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// getEnvInt reads environment variable with fallback to default
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat reads environment variable as float with fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvString reads environment variable with string fallback
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvDuration reads environment variable as duration with fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		// Try as integer seconds
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Session Tracking
	SessionInactivityTimeout time.Duration
	TransitionMergeWindow    time.Duration
	MaxSegmentSeconds        float64
	ActiveSegmentCapSeconds  float64
	PerfectAccuracyBonus     float64

	// Concurrency Control
	ConflictRetryLimit    int
	ConflictRetryDelay    time.Duration
	FinalFlushRetryLimit  int
	FinalFlushBackoffBase time.Duration
	FinalFlushBackoffCap  time.Duration

	// Database
	DBPath                   string
	TursoDatabaseURL         string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Collaborators
	CollectorURL     string
	CollectorTimeout time.Duration
	ProgressURL      string
	ProgressTimeout  time.Duration

	// Security
	JWTSecret      string
	APIKeyHash     string
	TokenTTL       time.Duration
	SignerTokenTTL time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Session Tracking
	// Product-tuned constants; kept configurable on purpose.
	SessionInactivityTimeout = getEnvDuration("SESSION_INACTIVITY_TIMEOUT", 30*time.Minute)
	TransitionMergeWindow = getEnvDuration("TRANSITION_MERGE_WINDOW", 5*time.Second)
	MaxSegmentSeconds = getEnvFloat("MAX_SEGMENT_SECONDS", 7200)
	ActiveSegmentCapSeconds = getEnvFloat("ACTIVE_SEGMENT_CAP_SECONDS", 15)
	PerfectAccuracyBonus = getEnvFloat("PERFECT_ACCURACY_BONUS", 1.2)

	// Concurrency Control
	ConflictRetryLimit = getEnvInt("CONFLICT_RETRY_LIMIT", 3)
	ConflictRetryDelay = getEnvDuration("CONFLICT_RETRY_DELAY", 100*time.Millisecond)
	FinalFlushRetryLimit = getEnvInt("FINAL_FLUSH_RETRY_LIMIT", 3)
	FinalFlushBackoffBase = getEnvDuration("FINAL_FLUSH_BACKOFF_BASE", time.Second)
	FinalFlushBackoffCap = getEnvDuration("FINAL_FLUSH_BACKOFF_CAP", 5*time.Second)

	// Database
	DBPath = getEnvString("DB_PATH", "fmath.db")
	TursoDatabaseURL = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvString("TURSO_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 50*time.Millisecond)

	// Collaborators
	CollectorURL = getEnvString("COLLECTOR_URL", "")
	CollectorTimeout = getEnvDuration("COLLECTOR_TIMEOUT", 10*time.Second)
	ProgressURL = getEnvString("PROGRESS_URL", "")
	ProgressTimeout = getEnvDuration("PROGRESS_TIMEOUT", 5*time.Second)

	// Security
	JWTSecret = getEnvString("JWT_SECRET", "")
	APIKeyHash = getEnvString("API_KEY_HASH", "")
	TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	SignerTokenTTL = getEnvDuration("SIGNER_TOKEN_TTL", 5*time.Minute)
}
