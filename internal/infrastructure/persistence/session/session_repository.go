// Package session provides the concrete SQL-based implementation of
// the session domain store.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/database"
)

// SQLSessionRepository is the SQL-based implementation of session.Store.
type SQLSessionRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSessionRepository {
	return &SQLSessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `session_id, user_id, track_id, start_time, end_time, version,
	       transitions, activity_time, total_time, facts_covered,
	       active_seconds, waste_seconds, xp_earned, total_questions, correct_questions`

// GetLatestByUserID retrieves the user's most recent session by end-time
// recency, or nil when the user has none.
func (r *SQLSessionRepository) GetLatestByUserID(userID string) (*session.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM learning_sessions
		WHERE user_id = ?
		ORDER BY end_time DESC
		LIMIT 1`, sessionColumns)

	start := time.Now()
	r.logger.Database().Debug("Loading latest session", "userId", userID)

	row := r.db.QueryRow(query, userID)
	sess, err := r.scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("No session found for user", "userId", userID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load latest session", "error", err.Error(), "userId", userID)
		return nil, err
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return sess, nil
}

// Create plain-writes a brand new session row at version 1.
func (r *SQLSessionRepository) Create(sess *session.Session) error {
	const query = `
		INSERT INTO learning_sessions (
			session_id, user_id, track_id, start_time, end_time, version,
			transitions, activity_time, total_time, facts_covered,
			active_seconds, waste_seconds, xp_earned, total_questions, correct_questions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()

	transitionsJSON, activityJSON, factsJSON, err := marshalSessionDocs(sess.Transitions, sess.ActivityTime, sess.FactsCovered)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query,
		sess.SessionID, sess.UserID, sess.TrackID,
		sess.StartTime.UTC().Format(time.RFC3339Nano),
		sess.EndTime.UTC().Format(time.RFC3339Nano),
		sess.Version,
		transitionsJSON, activityJSON, sess.TotalTime, factsJSON,
		sess.ActiveSeconds, sess.WasteSeconds, sess.XPEarned,
		sess.TotalQuestions, sess.CorrectQuestions,
	)
	if err != nil {
		r.logger.Database().Error("Failed to create session", "error", err.Error(), "sessionId", sess.SessionID, "userId", sess.UserID)
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Database().Info("Session created", "sessionId", sess.SessionID, "userId", sess.UserID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// ConditionalUpdate applies the mutation and bumps the version by one,
// gated on expectedVersion. Returns session.ErrVersionConflict when the
// stored version has moved on.
func (r *SQLSessionRepository) ConditionalUpdate(sessionID string, expectedVersion int64, mut session.Mutation) error {
	start := time.Now()

	transitionsJSON, err := json.Marshal(mut.Transitions)
	if err != nil {
		return fmt.Errorf("failed to marshal transitions: %w", err)
	}
	endTime := mut.EndTime.UTC().Format(time.RFC3339Nano)

	var result sql.Result
	var query string
	if mut.Recomputed {
		query = `
			UPDATE learning_sessions
			SET transitions = ?, end_time = ?, activity_time = ?,
			    total_time = ?, facts_covered = ?, version = version + 1
			WHERE session_id = ? AND version = ?`

		activityJSON, err := json.Marshal(mut.ActivityTime)
		if err != nil {
			return fmt.Errorf("failed to marshal activity time: %w", err)
		}
		factsJSON, err := json.Marshal(mut.FactsCovered)
		if err != nil {
			return fmt.Errorf("failed to marshal facts covered: %w", err)
		}
		result, err = r.db.Exec(query,
			string(transitionsJSON), endTime, string(activityJSON),
			mut.TotalTime, string(factsJSON),
			sessionID, expectedVersion,
		)
		if err != nil {
			r.logger.Database().Error("Failed to update session", "error", err.Error(), "sessionId", sessionID)
			return fmt.Errorf("failed to update session: %w", err)
		}
	} else {
		query = `
			UPDATE learning_sessions
			SET transitions = ?, end_time = ?, version = version + 1
			WHERE session_id = ? AND version = ?`

		result, err = r.db.Exec(query,
			string(transitionsJSON), endTime,
			sessionID, expectedVersion,
		)
		if err != nil {
			r.logger.Database().Error("Failed to update session", "error", err.Error(), "sessionId", sessionID)
			return fmt.Errorf("failed to update session: %w", err)
		}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		r.logger.Database().Debug("Session version conflict", "sessionId", sessionID, "expectedVersion", expectedVersion)
		return session.ErrVersionConflict
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// IncrementTotals atomically adds flushed metrics onto the session row
// without touching its version.
func (r *SQLSessionRepository) IncrementTotals(sessionID string, totals session.Totals) error {
	const query = `
		UPDATE learning_sessions
		SET active_seconds = active_seconds + ?,
		    waste_seconds = waste_seconds + ?,
		    xp_earned = xp_earned + ?,
		    total_questions = total_questions + ?,
		    correct_questions = correct_questions + ?
		WHERE session_id = ?`

	start := time.Now()

	result, err := r.db.Exec(query,
		totals.ActiveSeconds, totals.WasteSeconds, totals.XPEarned,
		totals.TotalQuestions, totals.CorrectQuestions,
		sessionID,
	)
	if err != nil {
		r.logger.Database().Error("Failed to increment session totals", "error", err.Error(), "sessionId", sessionID)
		return fmt.Errorf("failed to increment session totals: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read increment result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// scanSession hydrates a full session from a database row.
func (r *SQLSessionRepository) scanSession(row *sql.Row) (*session.Session, error) {
	var sess session.Session
	var startTime, endTime string
	var transitionsJSON, activityJSON, factsJSON string

	err := row.Scan(
		&sess.SessionID, &sess.UserID, &sess.TrackID,
		&startTime, &endTime, &sess.Version,
		&transitionsJSON, &activityJSON, &sess.TotalTime, &factsJSON,
		&sess.ActiveSeconds, &sess.WasteSeconds, &sess.XPEarned,
		&sess.TotalQuestions, &sess.CorrectQuestions,
	)
	if err != nil {
		return nil, err
	}

	if sess.StartTime, err = time.Parse(time.RFC3339Nano, startTime); err != nil {
		return nil, fmt.Errorf("invalid session start time: %w", err)
	}
	if sess.EndTime, err = time.Parse(time.RFC3339Nano, endTime); err != nil {
		return nil, fmt.Errorf("invalid session end time: %w", err)
	}

	if err := json.Unmarshal([]byte(transitionsJSON), &sess.Transitions); err != nil {
		return nil, fmt.Errorf("invalid transitions document: %w", err)
	}
	if err := json.Unmarshal([]byte(activityJSON), &sess.ActivityTime); err != nil {
		return nil, fmt.Errorf("invalid activity time document: %w", err)
	}
	if err := json.Unmarshal([]byte(factsJSON), &sess.FactsCovered); err != nil {
		return nil, fmt.Errorf("invalid facts covered document: %w", err)
	}
	if sess.ActivityTime == nil {
		sess.ActivityTime = make(map[session.ActivityType]float64)
	}
	if sess.FactsCovered == nil {
		sess.FactsCovered = make(map[session.Stage]map[string]*session.FactCoverage)
	}

	return &sess, nil
}

func marshalSessionDocs(
	transitions []session.Transition,
	activityTime map[session.ActivityType]float64,
	factsCovered map[session.Stage]map[string]*session.FactCoverage,
) (string, string, string, error) {
	if transitions == nil {
		transitions = []session.Transition{}
	}
	transitionsJSON, err := json.Marshal(transitions)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal transitions: %w", err)
	}
	activityJSON, err := json.Marshal(activityTime)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal activity time: %w", err)
	}
	factsJSON, err := json.Marshal(factsCovered)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal facts covered: %w", err)
	}
	return string(transitionsJSON), string(activityJSON), string(factsJSON), nil
}
