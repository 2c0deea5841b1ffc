// Package store provides SQLite-backed persistence for connector data.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Yash-Prakash1/connector/internal/model"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath. It auto-creates the
// parent directory (e.g. ~/.connector/) and runs schema migrations.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for WAL mode simplicity.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate runs schema migrations up to the current version.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}

	var ver int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&ver)
	if err == sql.ErrNoRows {
		ver = 0
	} else if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	if ver < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) migrateV1() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			goal          TEXT NOT NULL,
			goal_name     TEXT,
			os            TEXT NOT NULL,
			os_version    TEXT,
			fingerprint   TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT,
			outcome       TEXT,
			step_count    INTEGER NOT NULL DEFAULT 0,
			duration_ms   INTEGER,
			summary       TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_goal ON sessions(goal)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
		`CREATE TABLE IF NOT EXISTS steps (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL REFERENCES sessions(id),
			number      INTEGER NOT NULL,
			timestamp   TEXT NOT NULL,
			tool_name   TEXT NOT NULL,
			params      TEXT,
			success     INTEGER NOT NULL,
			stdout      TEXT,
			stderr      TEXT,
			error       TEXT,
			terminal    INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_session_id ON steps(session_id)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id               TEXT PRIMARY KEY,
			goal             TEXT NOT NULL,
			os               TEXT NOT NULL,
			os_version       TEXT,
			fingerprint      TEXT,
			steps            TEXT NOT NULL,
			outcome          TEXT,
			success_count    INTEGER NOT NULL DEFAULT 0,
			total_count      INTEGER NOT NULL DEFAULT 0,
			success_rate     REAL NOT NULL DEFAULT 0,
			confidence_score REAL NOT NULL DEFAULT 0,
			last_updated     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_goal_os ON patterns(goal, os)`,
		`CREATE TABLE IF NOT EXISTS error_resolutions (
			id                TEXT PRIMARY KEY,
			goal              TEXT,
			os                TEXT,
			error_fingerprint TEXT NOT NULL,
			category          TEXT,
			explanation       TEXT,
			resolution_action TEXT NOT NULL,
			resolution_detail TEXT,
			success_count     INTEGER NOT NULL DEFAULT 0,
			last_updated      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_resolutions_fp ON error_resolutions(error_fingerprint)`,
		`CREATE TABLE IF NOT EXISTS upload_queue (
			id         TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			attempts   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO config (key, value) VALUES ('telemetry', 'true')`,
		`INSERT OR REPLACE INTO schema_version (version) VALUES (1)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}
	return nil
}

// CreateSession persists a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, goal, goal_name, os, os_version, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Goal,
		nullableString(sess.GoalName),
		string(sess.OS),
		nullableString(sess.OSVersion),
		nullableString(sess.Fingerprint),
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CompleteSession marks a session finished with its final result.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string, res model.SessionResult) error {
	outcome := "failed"
	if res.Success {
		outcome = "success"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, outcome = ?, step_count = ?,
		 duration_ms = ?, summary = ?, error_message = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		outcome,
		res.Steps,
		res.Duration.Milliseconds(),
		nullableString(res.Summary),
		nullableString(res.Err),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// LogStep appends one executed step to the session log.
func (s *SQLiteStore) LogStep(ctx context.Context, sessionID string, step model.Step) error {
	var params []byte
	if len(step.Call.Params) > 0 {
		var err error
		params, err = json.Marshal(step.Call.Params)
		if err != nil {
			return fmt.Errorf("marshal step params: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (id, session_id, number, timestamp, tool_name, params,
		 success, stdout, stderr, error, terminal, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		sessionID,
		step.Number,
		step.Timestamp.UTC().Format(time.RFC3339Nano),
		step.Call.Name,
		nullableJSON(params),
		boolToInt(step.Result.Success),
		nullableString(step.Result.Stdout),
		nullableString(step.Result.Stderr),
		nullableString(step.Result.Error),
		boolToInt(step.Result.Terminal),
		step.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// ListSteps returns a session's steps in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, sessionID string) ([]model.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, timestamp, tool_name, params, success, stdout, stderr, error, terminal, duration_ms
		 FROM steps WHERE session_id = ? ORDER BY number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []model.Step
	for rows.Next() {
		var st model.Step
		var ts string
		var params, stdout, stderr, errText sql.NullString
		var success, terminal int
		var durationMS int64
		if err := rows.Scan(&st.Number, &ts, &st.Call.Name, &params, &success,
			&stdout, &stderr, &errText, &terminal, &durationMS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &st.Call.Params); err != nil {
				return nil, fmt.Errorf("parse step params: %w", err)
			}
		}
		st.Result.Success = success != 0
		st.Result.Terminal = terminal != 0
		st.Result.Stdout = stdout.String
		st.Result.Stderr = stderr.String
		st.Result.Error = errText.String
		st.Duration = time.Duration(durationMS) * time.Millisecond
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		st.Timestamp = t
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// CachedPatterns returns patterns for a goal/OS ordered by confidence descending.
func (s *SQLiteStore) CachedPatterns(ctx context.Context, goal string, os model.OS) ([]model.ResolutionPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal, os, os_version, fingerprint, steps, outcome,
		 success_count, total_count, success_rate, confidence_score
		 FROM patterns WHERE goal = ? AND os = ? ORDER BY confidence_score DESC`,
		goal, string(os))
	if err != nil {
		return nil, fmt.Errorf("cached patterns: %w", err)
	}
	defer rows.Close()

	var patterns []model.ResolutionPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func scanPattern(rows *sql.Rows) (model.ResolutionPattern, error) {
	var p model.ResolutionPattern
	var osName, stepsJSON string
	var osVersion, fp, outcome sql.NullString
	if err := rows.Scan(&p.ID, &p.Goal, &osName, &osVersion, &fp, &stepsJSON, &outcome,
		&p.Stats.SuccessCount, &p.Stats.TotalCount, &p.Stats.SuccessRate, &p.Stats.Confidence); err != nil {
		return p, fmt.Errorf("scan pattern: %w", err)
	}
	p.OS = model.OS(osName)
	p.OSVersion = osVersion.String
	p.Fingerprint = fp.String
	p.Outcome = outcome.String
	if err := json.Unmarshal([]byte(stepsJSON), &p.Steps); err != nil {
		return p, fmt.Errorf("parse pattern steps: %w", err)
	}
	return p, nil
}

// CachePatterns upserts pool-sourced patterns by id; last write wins.
func (s *SQLiteStore) CachePatterns(ctx context.Context, patterns []model.ResolutionPattern) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range patterns {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		stepsJSON, err := json.Marshal(p.Steps)
		if err != nil {
			return fmt.Errorf("marshal pattern steps: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO patterns
			 (id, goal, os, os_version, fingerprint, steps, outcome,
			  success_count, total_count, success_rate, confidence_score, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.Goal, string(p.OS),
			nullableString(p.OSVersion),
			nullableString(p.Fingerprint),
			string(stepsJSON),
			nullableString(p.Outcome),
			p.Stats.SuccessCount, p.Stats.TotalCount, p.Stats.SuccessRate, p.Stats.Confidence,
			now,
		)
		if err != nil {
			return fmt.Errorf("cache pattern %s: %w", id, err)
		}
	}
	return nil
}

// RecordLearnedOutcome upserts a locally learned pattern by identity hash.
func (s *SQLiteStore) RecordLearnedOutcome(ctx context.Context, p model.ResolutionPattern, succeeded bool) error {
	id := PatternID(p.Goal, p.OS, p.Steps)
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return fmt.Errorf("marshal pattern steps: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var successCount, totalCount int
	err = tx.QueryRowContext(ctx,
		"SELECT success_count, total_count FROM patterns WHERE id = ?", id,
	).Scan(&successCount, &totalCount)
	switch {
	case err == sql.ErrNoRows:
		successCount, totalCount = 0, 0
	case err != nil:
		return fmt.Errorf("read pattern: %w", err)
	}

	totalCount++
	if succeeded {
		successCount++
	}
	rate := float64(successCount) / float64(totalCount)
	// Local confidence grows with both reliability and evidence.
	confidence := rate * float64(totalCount)

	if totalCount == 1 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO patterns
			 (id, goal, os, os_version, fingerprint, steps, outcome,
			  success_count, total_count, success_rate, confidence_score, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.Goal, string(p.OS),
			nullableString(p.OSVersion),
			nullableString(p.Fingerprint),
			string(stepsJSON),
			nullableString(p.Outcome),
			successCount, totalCount, rate, confidence, now)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE patterns SET success_count = ?, total_count = ?,
			 success_rate = ?, confidence_score = ?, last_updated = ? WHERE id = ?`,
			successCount, totalCount, rate, confidence, now, id)
	}
	if err != nil {
		return fmt.Errorf("write pattern: %w", err)
	}
	return tx.Commit()
}

// CachedErrorResolutions returns scoped error resolutions, most successful first.
func (s *SQLiteStore) CachedErrorResolutions(ctx context.Context, goal string, os model.OS) ([]model.ErrorResolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal, os, error_fingerprint, category, explanation,
		 resolution_action, resolution_detail, success_count
		 FROM error_resolutions
		 WHERE (goal = ? OR goal IS NULL) AND (os = ? OR os IS NULL)
		 ORDER BY success_count DESC`,
		goal, string(os))
	if err != nil {
		return nil, fmt.Errorf("cached error resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []model.ErrorResolution
	for rows.Next() {
		var er model.ErrorResolution
		var goalCol, osCol, category, explanation, detail sql.NullString
		if err := rows.Scan(&er.ID, &goalCol, &osCol, &er.ErrorFingerprint, &category,
			&explanation, &er.Action, &detail, &er.SuccessCount); err != nil {
			return nil, fmt.Errorf("scan error resolution: %w", err)
		}
		er.Goal = goalCol.String
		er.OS = model.OS(osCol.String)
		er.Category = category.String
		er.Explanation = explanation.String
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &er.Detail); err != nil {
				return nil, fmt.Errorf("parse resolution detail: %w", err)
			}
		}
		resolutions = append(resolutions, er)
	}
	return resolutions, rows.Err()
}

// CacheErrorResolutions upserts pool-sourced error resolutions by id.
func (s *SQLiteStore) CacheErrorResolutions(ctx context.Context, resolutions []model.ErrorResolution) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, er := range resolutions {
		id := er.ID
		if id == "" {
			id = uuid.New().String()
		}
		detail, err := marshalDetail(er.Detail)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO error_resolutions
			 (id, goal, os, error_fingerprint, category, explanation,
			  resolution_action, resolution_detail, success_count, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			nullableString(er.Goal),
			nullableString(string(er.OS)),
			er.ErrorFingerprint,
			nullableString(er.Category),
			nullableString(er.Explanation),
			er.Action,
			detail,
			er.SuccessCount,
			now,
		)
		if err != nil {
			return fmt.Errorf("cache error resolution %s: %w", id, err)
		}
	}
	return nil
}

// RecordErrorResolution upserts by identity hash, incrementing success_count.
func (s *SQLiteStore) RecordErrorResolution(ctx context.Context, er model.ErrorResolution) error {
	id := ResolutionID(er.ErrorFingerprint, er.Action)
	detail, err := marshalDetail(er.Detail)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var successCount int
	err = tx.QueryRowContext(ctx,
		"SELECT success_count FROM error_resolutions WHERE id = ?", id,
	).Scan(&successCount)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO error_resolutions
			 (id, goal, os, error_fingerprint, category, explanation,
			  resolution_action, resolution_detail, success_count, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			id,
			nullableString(er.Goal),
			nullableString(string(er.OS)),
			er.ErrorFingerprint,
			nullableString(er.Category),
			nullableString(er.Explanation),
			er.Action,
			detail,
			now)
	case err != nil:
		return fmt.Errorf("read error resolution: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE error_resolutions SET success_count = ?, last_updated = ? WHERE id = ?`,
			successCount+1, now, id)
	}
	if err != nil {
		return fmt.Errorf("write error resolution: %w", err)
	}
	return tx.Commit()
}

// QueueUpload enqueues a shared-pool contribution payload for retry.
func (s *SQLiteStore) QueueUpload(ctx context.Context, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO upload_queue (id, payload, created_at) VALUES (?, ?, ?)",
		uuid.New().String(),
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("queue upload: %w", err)
	}
	return nil
}

// PendingUploads returns queued contributions, FIFO by creation time.
func (s *SQLiteStore) PendingUploads(ctx context.Context) ([]model.UploadItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload, created_at, attempts FROM upload_queue ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("pending uploads: %w", err)
	}
	defer rows.Close()

	var items []model.UploadItem
	for rows.Next() {
		var item model.UploadItem
		var payload, createdAt string
		if err := rows.Scan(&item.ID, &payload, &createdAt, &item.Attempts); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		item.Payload = []byte(payload)
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveUpload deletes a queued contribution after a successful flush.
func (s *SQLiteStore) RemoveUpload(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM upload_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// BumpUploadAttempts increments a queued contribution's retry counter.
func (s *SQLiteStore) BumpUploadAttempts(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE upload_queue SET attempts = attempts + 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("bump upload attempts: %w", err)
	}
	return nil
}

// GetConfig returns the value for a config key, or "" if unset.
func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config: %w", err)
	}
	return value, nil
}

// SetConfig stores a config key/value pair.
func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

// SessionStats returns summary statistics about stored sessions.
func (s *SQLiteStore) SessionStats(ctx context.Context) (Stats, error) {
	var st Stats

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&st.TotalSessions); err != nil {
		return st, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE outcome = 'success'").Scan(&st.Successes); err != nil {
		return st, fmt.Errorf("count successes: %w", err)
	}
	if st.TotalSessions > 0 {
		st.SuccessRate = float64(st.Successes) / float64(st.TotalSessions)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patterns").Scan(&st.Patterns); err != nil {
		return st, fmt.Errorf("count patterns: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM error_resolutions").Scan(&st.ErrorResolutions); err != nil {
		return st, fmt.Errorf("count error resolutions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM upload_queue").Scan(&st.PendingUploads); err != nil {
		return st, fmt.Errorf("count pending uploads: %w", err)
	}

	// Top goals (top 5).
	goalRows, err := s.db.QueryContext(ctx,
		"SELECT goal, COUNT(*) as cnt FROM sessions GROUP BY goal ORDER BY cnt DESC LIMIT 5")
	if err != nil {
		return st, fmt.Errorf("top goals: %w", err)
	}
	defer goalRows.Close()

	for goalRows.Next() {
		var nc NameCount
		if err := goalRows.Scan(&nc.Name, &nc.Count); err != nil {
			return st, fmt.Errorf("scan top goal: %w", err)
		}
		st.TopGoals = append(st.TopGoals, nc)
	}
	if err := goalRows.Err(); err != nil {
		return st, err
	}

	// Date range.
	if st.TotalSessions > 0 {
		var earliest, latest string
		if err := s.db.QueryRowContext(ctx,
			"SELECT MIN(created_at), MAX(created_at) FROM sessions").Scan(&earliest, &latest); err != nil {
			return st, fmt.Errorf("date range: %w", err)
		}
		st.Earliest, _ = time.Parse(time.RFC3339Nano, earliest)
		st.Latest, _ = time.Parse(time.RFC3339Nano, latest)
	}

	// Time-window counts.
	now := time.Now().UTC()
	for _, w := range []struct {
		dur time.Duration
		dst *int
	}{
		{24 * time.Hour, &st.Last24h},
		{7 * 24 * time.Hour, &st.Last7d},
		{30 * 24 * time.Hour, &st.Last30d},
	} {
		since := now.Add(-w.dur).Format(time.RFC3339Nano)
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sessions WHERE created_at >= ?", since).Scan(w.dst); err != nil {
			return st, fmt.Errorf("count since %v: %w", w.dur, err)
		}
	}

	return st, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalDetail(detail map[string]any) (any, error) {
	if len(detail) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal resolution detail: %w", err)
	}
	return string(b), nil
}

// boolToInt converts a bool to an integer for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString returns nil for empty strings, otherwise the string value.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableJSON returns nil for nil/empty JSON, otherwise the string representation.
func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
