package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vtcode-ai/vtcode/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface against a local SQLite file.
// It is the default persistent backend for a single-machine vtcode session:
// no server to run, one file per workspace checkout.
type SQLiteStore struct {
	db *sql.DB

	stmtCreateSession *sql.Stmt
	stmtGetSession    *sql.Stmt
	stmtUpdateSession *sql.Stmt
	stmtDeleteSession *sql.Stmt
	stmtGetByKey      *sql.Stmt
	stmtAppendMessage *sql.Stmt
	stmtGetHistory    *sql.Stmt
}

// DB exposes the underlying database connection for related stores.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// prepares the sessions/messages schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY churn
	// under the process-wide write lock already applied by LockingStore.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			workspace_root TEXT NOT NULL,
			editing_mode TEXT NOT NULL DEFAULT '',
			autonomous INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			direction TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			attachments TEXT NOT NULL DEFAULT 'null',
			tool_calls TEXT NOT NULL DEFAULT 'null',
			tool_results TEXT NOT NULL DEFAULT 'null',
			metadata TEXT NOT NULL DEFAULT 'null',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
	`)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.stmtCreateSession, err = s.db.Prepare(`
		INSERT INTO sessions (id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare create session: %w", err)
	}

	s.stmtGetSession, err = s.db.Prepare(`
		SELECT id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at
		FROM sessions WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get session: %w", err)
	}

	s.stmtUpdateSession, err = s.db.Prepare(`
		UPDATE sessions SET title = ?, editing_mode = ?, autonomous = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update session: %w", err)
	}

	s.stmtDeleteSession, err = s.db.Prepare(`DELETE FROM sessions WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete session: %w", err)
	}

	s.stmtGetByKey, err = s.db.Prepare(`
		SELECT id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at
		FROM sessions WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get by key: %w", err)
	}

	s.stmtAppendMessage, err = s.db.Prepare(`
		INSERT INTO messages (id, session_id, direction, role, content, attachments, tool_calls, tool_results, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append message: %w", err)
	}

	s.stmtGetHistory, err = s.db.Prepare(`
		SELECT id, session_id, direction, role, content, attachments, tool_calls, tool_results, metadata, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get history: %w", err)
	}

	return nil
}

// Close closes the database connection and prepared statements.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmtCreateSession, s.stmtGetSession, s.stmtUpdateSession,
		s.stmtDeleteSession, s.stmtGetByKey, s.stmtAppendMessage, s.stmtGetHistory,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

func scanSQLiteSession(row interface {
	Scan(dest ...any) error
}) (*models.Session, error) {
	session := &models.Session{}
	var metadataJSON, createdAt, updatedAt string
	var autonomous int

	if err := row.Scan(
		&session.SessionID,
		&session.Key,
		&session.Title,
		&session.WorkspaceRoot,
		&session.EditingMode,
		&autonomous,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	session.Autonomous = autonomous != 0
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	var err error
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}

// Create creates a new session.
func (s *SQLiteStore) Create(ctx context.Context, session *models.Session) error {
	if session.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.stmtCreateSession.ExecContext(ctx,
		session.SessionID,
		session.Key,
		session.Title,
		session.WorkspaceRoot,
		string(session.EditingMode),
		boolToInt(session.Autonomous),
		metadata,
		session.CreatedAt.Format(time.RFC3339Nano),
		session.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := scanSQLiteSession(s.stmtGetSession.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Update updates an existing session.
func (s *SQLiteStore) Update(ctx context.Context, session *models.Session) error {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	session.UpdatedAt = time.Now()

	result, err := s.stmtUpdateSession.ExecContext(ctx,
		session.Title,
		string(session.EditingMode),
		boolToInt(session.Autonomous),
		metadata,
		session.UpdatedAt.Format(time.RFC3339Nano),
		session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", session.SessionID)
	}
	return nil
}

// Delete deletes a session by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.stmtDeleteSession.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// GetByKey retrieves a session by its unique key.
func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (*models.Session, error) {
	session, err := scanSQLiteSession(s.stmtGetByKey.QueryRowContext(ctx, key))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found with key: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}
	return session, nil
}

// GetOrCreate retrieves the session scoped to workspaceRoot or creates a new one atomically.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, workspaceRoot string) (*models.Session, error) {
	now := time.Now().Format(time.RFC3339Nano)
	id := generateID()

	query := `
		INSERT INTO sessions (id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at)
		VALUES (?, ?, '', ?, '', 0, '{}', ?, ?)
		ON CONFLICT(key) DO UPDATE SET key = sessions.key
		RETURNING id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at
	`
	session, err := scanSQLiteSession(s.db.QueryRowContext(ctx, query, id, workspaceRoot, workspaceRoot, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create session: %w", err)
	}
	return session, nil
}

// List retrieves sessions ordered by most recently updated.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	query := `
		SELECT id, key, title, workspace_root, editing_mode, autonomous, metadata, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
	`
	var args []any
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1" // sqlite requires LIMIT before OFFSET
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.Session
	for rows.Next() {
		session, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return result, nil
}

// AppendMessage adds a message to a session's history and bumps its updated_at.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	attachmentsJSON, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	toolCallsJSON, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	toolResultsJSON, err := json.Marshal(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("failed to marshal tool results: %w", err)
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit returns ErrTxDone
	}()

	_, err = tx.StmtContext(ctx, s.stmtAppendMessage).ExecContext(ctx,
		msg.ID,
		sessionID,
		string(msg.Direction),
		string(msg.Role),
		msg.Content,
		attachmentsJSON,
		toolCallsJSON,
		toolResultsJSON,
		metadataJSON,
		msg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().Format(time.RFC3339Nano), sessionID); err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	return tx.Commit()
}

// GetHistory retrieves message history for a session in chronological order.
func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.stmtGetHistory.QueryContext(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var direction, role, createdAt string
		var attachmentsJSON, toolCallsJSON, toolResultsJSON, metadataJSON string

		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&direction,
			&role,
			&msg.Content,
			&attachmentsJSON,
			&toolCallsJSON,
			&toolResultsJSON,
			&metadataJSON,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Direction = models.Direction(direction)
		msg.Role = models.Role(role)
		if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if attachmentsJSON != "" && attachmentsJSON != "null" {
			if err := json.Unmarshal([]byte(attachmentsJSON), &msg.Attachments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
			}
		}
		if toolCallsJSON != "" && toolCallsJSON != "null" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		if toolResultsJSON != "" && toolResultsJSON != "null" {
			if err := json.Unmarshal([]byte(toolResultsJSON), &msg.ToolResults); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool results: %w", err)
			}
		}
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
