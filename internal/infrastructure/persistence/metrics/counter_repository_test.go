package metrics

import (
	"log/slog"
	"testing"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/database"
)

func newTestRepo(t *testing.T) *SQLCounterRepository {
	t.Helper()

	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	db, err := database.NewConnection("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewSQLCounterRepository(db, logger)
}

func TestIncrementCreatesAndAccumulates(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 40, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 10, now.Add(time.Minute)); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	snapshot, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("SnapshotAndClear: %v", err)
	}
	if snapshot["timeSpentDelta"] != 50 {
		t.Errorf("timeSpentDelta = %v, want 50", snapshot["timeSpentDelta"])
	}
}

func TestSnapshotAndClearExchangesDeltaForFlushed(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 40, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment("u1", "2026-03-10", "activeTimeDelta", 15, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	snapshot, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("SnapshotAndClear: %v", err)
	}
	if len(snapshot) != 2 || snapshot["timeSpentDelta"] != 40 || snapshot["activeTimeDelta"] != 15 {
		t.Fatalf("snapshot = %v, want both deltas", snapshot)
	}

	// Second pass finds nothing pending.
	again, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("second SnapshotAndClear: %v", err)
	}
	if again != nil {
		t.Errorf("second snapshot = %v, want nil", again)
	}

	// The values moved into flushed counters; a fresh delta accumulates anew.
	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 5, now); err != nil {
		t.Fatalf("Increment after flush: %v", err)
	}
	third, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("third SnapshotAndClear: %v", err)
	}
	if third["timeSpentDelta"] != 5 {
		t.Errorf("post-flush delta = %v, want 5", third["timeSpentDelta"])
	}
}

func TestClearDayDropsDeltasOnly(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 40, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment("u1", "2026-03-10", "timeSpentFlushed", 100, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	if err := repo.ClearDay("u1", "2026-03-10"); err != nil {
		t.Fatalf("ClearDay: %v", err)
	}

	snapshot, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("SnapshotAndClear: %v", err)
	}
	if snapshot != nil {
		t.Errorf("deltas survived ClearDay: %v", snapshot)
	}
}

func TestCountersIsolatedByUserAndDay(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	if err := repo.Increment("u1", "2026-03-10", "timeSpentDelta", 40, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment("u2", "2026-03-10", "timeSpentDelta", 7, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment("u1", "2026-03-11", "timeSpentDelta", 9, now); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	snapshot, err := repo.SnapshotAndClear("u1", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("SnapshotAndClear: %v", err)
	}
	if snapshot["timeSpentDelta"] != 40 {
		t.Errorf("u1 2026-03-10 = %v, want 40", snapshot["timeSpentDelta"])
	}

	other, err := repo.SnapshotAndClear("u2", "2026-03-10", metrics.DeltaFieldNames())
	if err != nil {
		t.Fatalf("SnapshotAndClear: %v", err)
	}
	if other["timeSpentDelta"] != 7 {
		t.Errorf("u2 2026-03-10 = %v, want 7", other["timeSpentDelta"])
	}
}
