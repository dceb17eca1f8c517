// Package metrics provides the concrete SQL-based implementation of
// the per-(user, day) delta counter store.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/database"
)

// SQLCounterRepository is the SQL-based implementation of metrics.CounterStore.
type SQLCounterRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLCounterRepository creates a new instance of the repository.
func NewSQLCounterRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLCounterRepository {
	return &SQLCounterRepository{
		db:     db,
		logger: logger,
	}
}

// Increment atomically adds amount to a counter, creating it at zero
// when absent.
func (r *SQLCounterRepository) Increment(userID, day, field string, amount float64, now time.Time) error {
	const query = `
		INSERT INTO metric_counters (user_id, day, field, value, last_increment)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day, field) DO UPDATE SET
			value = value + excluded.value,
			last_increment = excluded.last_increment`

	start := time.Now()

	_, err := r.db.Exec(query, userID, day, field, amount, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Database().Error("Failed to increment counter", "error", err.Error(), "userId", userID, "day", day, "field", field)
		return fmt.Errorf("failed to increment counter %s: %w", field, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// SnapshotAndClear atomically reads the listed delta fields, folds each
// present value into its Flushed counterpart, removes the delta rows,
// and returns the pre-update values. The whole exchange runs in one
// transaction so no concurrent increment is lost or double-counted.
func (r *SQLCounterRepository) SnapshotAndClear(userID, day string, fields []string) (map[string]float64, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	start := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
	selectQuery := fmt.Sprintf(`
		SELECT field, value
		FROM metric_counters
		WHERE user_id = ? AND day = ? AND field IN (%s)`, placeholders)

	args := make([]any, 0, len(fields)+2)
	args = append(args, userID, day)
	for _, f := range fields {
		args = append(args, f)
	}

	rows, err := tx.Query(selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read delta counters: %w", err)
	}

	snapshot := make(map[string]float64)
	for rows.Next() {
		var field string
		var value float64
		if err := rows.Scan(&field, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan delta counter: %w", err)
		}
		snapshot[field] = value
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate delta counters: %w", err)
	}
	rows.Close()

	if len(snapshot) == 0 {
		return nil, nil
	}

	const upsertQuery = `
		INSERT INTO metric_counters (user_id, day, field, value, last_increment)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day, field) DO UPDATE SET
			value = value + excluded.value,
			last_increment = excluded.last_increment`

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	for field, value := range snapshot {
		flushed := strings.TrimSuffix(field, metrics.DeltaSuffix) + metrics.FlushedSuffix
		if _, err := tx.Exec(upsertQuery, userID, day, flushed, value, stamp); err != nil {
			return nil, fmt.Errorf("failed to record flushed counter %s: %w", flushed, err)
		}
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM metric_counters
		WHERE user_id = ? AND day = ? AND field IN (%s)`, placeholders)
	if _, err := tx.Exec(deleteQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to clear delta counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	r.logger.Database().Debug("Delta counters snapshotted", "userId", userID, "day", day, "fields", len(snapshot))
	database.CheckAndLogSlowQuery(r.logger, selectQuery, time.Since(start))
	return snapshot, nil
}

// ClearDay removes every delta counter for the day. Flushed counters
// are untouched.
func (r *SQLCounterRepository) ClearDay(userID, day string) error {
	const query = `
		DELETE FROM metric_counters
		WHERE user_id = ? AND day = ? AND field LIKE '%Delta'`

	start := time.Now()

	if _, err := r.db.Exec(query, userID, day); err != nil {
		r.logger.Database().Error("Failed to clear delta counters", "error", err.Error(), "userId", userID, "day", day)
		return fmt.Errorf("failed to clear delta counters: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}
