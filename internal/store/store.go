// Package store handles all persistent storage using SQLite.
//
// One database holds the chat request lifecycle, the saved conversation
// history and per-request processing metrics.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

// Status is the lifecycle state of a chat request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions encodes the request lifecycle. A request only moves
// forward; completed and failed are terminal.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is one chat request row.
type Request struct {
	ID          string
	UserMessage string
	Status      Status
	Reply       string
	ActionJSON  string
	ErrorText   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// ProcessingMS is the wall time from processing to a terminal state.
	ProcessingMS int64
}

// HistoryEntry is one saved user/assistant exchange.
type HistoryEntry struct {
	ID          int64
	RequestID   string
	UserMessage string
	Reply       string
	ActionJSON  string
	CreatedAt   time.Time
}

// Store manages the BizChat database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at the given path.
// Creates the database and tables if they don't exist.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageUnavailable, "cannot open database", apperr.CategorySystem)
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, apperr.Wrap(err, apperr.CodeStorageUnavailable, "cannot configure database", apperr.CategorySystem)
		}
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection for aggregate queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	-- ============================================================
	-- CHAT REQUESTS
	-- ============================================================

	CREATE TABLE IF NOT EXISTS chat_requests (
		id              TEXT PRIMARY KEY,
		user_message    TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		reply           TEXT NOT NULL DEFAULT '',
		action_json     TEXT NOT NULL DEFAULT '',
		error_text      TEXT NOT NULL DEFAULT '',
		processing_ms   INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status ON chat_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_created ON chat_requests(created_at DESC);

	-- ============================================================
	-- CHAT HISTORY
	-- ============================================================

	CREATE TABLE IF NOT EXISTS chat_history (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id      TEXT NOT NULL,
		user_message    TEXT NOT NULL,
		reply           TEXT NOT NULL,
		action_json     TEXT NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (request_id) REFERENCES chat_requests(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_history_created ON chat_history(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_request ON chat_history(request_id);

	-- ============================================================
	-- TRIGGERS
	-- ============================================================

	CREATE TRIGGER IF NOT EXISTS chat_requests_updated
		AFTER UPDATE ON chat_requests
		BEGIN
			UPDATE chat_requests SET updated_at = strftime('%s', 'now') WHERE id = NEW.id;
		END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot initialize schema", apperr.CategorySystem)
	}

	return ensureSchemaVersion(s.db, 1, "Initial chat schema")
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		return err
	}

	return nil
}

// ============================================================
// Request Lifecycle
// ============================================================

// CreateRequest inserts a new pending request.
func (s *Store) CreateRequest(ctx context.Context, id, userMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_requests (id, user_message, status) VALUES (?, ?, ?)`,
		id, userMessage, StatusPending,
	)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot create request", apperr.CategorySystem)
	}
	return nil
}

// GetRequest fetches one request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_message, status, reply, action_json, error_text, processing_ms, created_at, updated_at
		 FROM chat_requests WHERE id = ?`, id)

	var r Request
	var created, updated int64
	err := row.Scan(&r.ID, &r.UserMessage, &r.Status, &r.Reply, &r.ActionJSON,
		&r.ErrorText, &r.ProcessingMS, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, apperr.User(apperr.CodeRequestNotFound,
			fmt.Sprintf("request %q not found", id)).WithStatus(404)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageFailed, "cannot read request", apperr.CategorySystem)
	}
	r.CreatedAt = time.Unix(created, 0)
	r.UpdatedAt = time.Unix(updated, 0)
	return &r, nil
}

// SetStatus moves a request through its lifecycle, rejecting transitions the
// lifecycle does not allow (e.g. completed back to processing).
func (s *Store) SetStatus(ctx context.Context, id string, to Status) error {
	return s.transition(ctx, id, to, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE chat_requests SET status = ? WHERE id = ?`, to, id)
		return err
	})
}

// Complete marks a request completed with its reply and optional action.
func (s *Store) Complete(ctx context.Context, id, reply, actionJSON string, processing time.Duration) error {
	return s.transition(ctx, id, StatusCompleted, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE chat_requests SET status = ?, reply = ?, action_json = ?, processing_ms = ? WHERE id = ?`,
			StatusCompleted, reply, actionJSON, processing.Milliseconds(), id)
		return err
	})
}

// Fail marks a request failed with a user-facing error text.
func (s *Store) Fail(ctx context.Context, id, errorText string, processing time.Duration) error {
	return s.transition(ctx, id, StatusFailed, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE chat_requests SET status = ?, error_text = ?, processing_ms = ? WHERE id = ?`,
			StatusFailed, errorText, processing.Milliseconds(), id)
		return err
	})
}

func (s *Store) transition(ctx context.Context, id string, to Status, apply func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot begin transaction", apperr.CategorySystem)
	}
	defer tx.Rollback()

	var from Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM chat_requests WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return apperr.User(apperr.CodeRequestNotFound,
			fmt.Sprintf("request %q not found", id)).WithStatus(404)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot read request status", apperr.CategorySystem)
	}

	if !canTransition(from, to) {
		return apperr.Permanent(apperr.CodeInvalidInput,
			fmt.Sprintf("invalid status transition %s -> %s for request %q", from, to, id))
	}

	if err := apply(tx); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot update request", apperr.CategorySystem)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot commit transaction", apperr.CategorySystem)
	}
	return nil
}

// ============================================================
// History
// ============================================================

// SaveHistory records a completed exchange.
func (s *Store) SaveHistory(ctx context.Context, requestID, userMessage, reply, actionJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (request_id, user_message, reply, action_json) VALUES (?, ?, ?, ?)`,
		requestID, userMessage, reply, actionJSON)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStorageFailed, "cannot save history", apperr.CategorySystem)
	}
	return nil
}

// RecentHistory returns the latest entries, newest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, user_message, reply, action_json, created_at
		 FROM chat_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageFailed, "cannot read history", apperr.CategorySystem)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.RequestID, &e.UserMessage, &e.Reply, &e.ActionJSON, &created); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeStorageFailed, "cannot scan history", apperr.CategorySystem)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HistoryByRequest returns the saved exchange for one request, if any.
func (s *Store) HistoryByRequest(ctx context.Context, requestID string) (*HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, user_message, reply, action_json, created_at
		 FROM chat_history WHERE request_id = ? ORDER BY id DESC LIMIT 1`, requestID)

	var e HistoryEntry
	var created int64
	err := row.Scan(&e.ID, &e.RequestID, &e.UserMessage, &e.Reply, &e.ActionJSON, &created)
	if err == sql.ErrNoRows {
		return nil, apperr.User(apperr.CodeRequestNotFound,
			fmt.Sprintf("no history for request %q", requestID)).WithStatus(404)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageFailed, "cannot read history", apperr.CategorySystem)
	}
	e.CreatedAt = time.Unix(created, 0)
	return &e, nil
}

// MarshalAction serializes an action payload for storage. Nil payloads
// store as the empty string.
func MarshalAction(payload any) (string, error) {
	if payload == nil {
		return "", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeStorageFailed, "cannot encode action", apperr.CategorySystem)
	}
	return string(b), nil
}
