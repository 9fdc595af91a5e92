package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/vtcode-ai/vtcode/pkg/models"
)

// SQLToolEventStore persists tool calls and results for a session into
// SQLite, satisfying agent.ToolEventStore so every AgenticLoop turn leaves a
// queryable trail of what was invoked and what came back, independent of the
// conversation history kept by Store.AppendMessage.
type SQLToolEventStore struct {
	db *sql.DB
}

// NewSQLToolEventStore creates a SQL-backed tool event store against db,
// creating its tables if absent. db is typically (*SQLiteStore).DB().
func NewSQLToolEventStore(db *sql.DB) (*SQLToolEventStore, error) {
	store := &SQLToolEventStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLToolEventStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			message_id TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL,
			input_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id);
		CREATE TABLE IF NOT EXISTS tool_results (
			tool_call_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			message_id TEXT NOT NULL DEFAULT '',
			is_error INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_results_session ON tool_results(session_id);
	`)
	return err
}

// AddToolCall records a tool call the assistant issued.
func (s *SQLToolEventStore) AddToolCall(ctx context.Context, sessionID, messageID string, call *models.ToolCall) error {
	if call == nil {
		return nil
	}
	input := call.Input
	if input == nil {
		input = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, session_id, message_id, tool_name, input_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, call.ID, sessionID, messageID, call.Name, string(input), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// AddToolResult records the outcome of a previously recorded tool call.
func (s *SQLToolEventStore) AddToolResult(ctx context.Context, sessionID, messageID string, call *models.ToolCall, result *models.ToolResult) error {
	if result == nil {
		return nil
	}
	callID := result.ToolCallID
	if callID == "" && call != nil {
		callID = call.ID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_results (tool_call_id, session_id, message_id, is_error, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, callID, sessionID, messageID, result.IsError, result.Content, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// GetToolCalls retrieves the most recent tool calls for a session, newest first.
func (s *SQLToolEventStore) GetToolCalls(ctx context.Context, sessionID string, limit int) ([]models.ToolCall, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_name, input_json FROM tool_calls
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []models.ToolCall
	for rows.Next() {
		var call models.ToolCall
		var input string
		if err := rows.Scan(&call.ID, &call.Name, &input); err != nil {
			return nil, err
		}
		call.Input = json.RawMessage(input)
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// MemoryToolEventStore implements the same interface in-process, used for
// tests and ephemeral runs that pair with sessions.MemoryStore.
type MemoryToolEventStore struct {
	mu      sync.RWMutex
	calls   map[string][]models.ToolCall
	results map[string][]models.ToolResult
}

// NewMemoryToolEventStore creates an empty in-memory tool event store.
func NewMemoryToolEventStore() *MemoryToolEventStore {
	return &MemoryToolEventStore{
		calls:   make(map[string][]models.ToolCall),
		results: make(map[string][]models.ToolResult),
	}
}

// AddToolCall records a tool call in memory, keyed by session.
func (s *MemoryToolEventStore) AddToolCall(ctx context.Context, sessionID, messageID string, call *models.ToolCall) error {
	if call == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[sessionID] = append(s.calls[sessionID], *call)
	return nil
}

// AddToolResult records a tool result in memory, keyed by session.
func (s *MemoryToolEventStore) AddToolResult(ctx context.Context, sessionID, messageID string, call *models.ToolCall, result *models.ToolResult) error {
	if result == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[sessionID] = append(s.results[sessionID], *result)
	return nil
}

// GetToolCalls retrieves tool calls recorded for a session, most recent first.
func (s *MemoryToolEventStore) GetToolCalls(ctx context.Context, sessionID string, limit int) ([]models.ToolCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	calls := s.calls[sessionID]
	out := make([]models.ToolCall, len(calls))
	for i, c := range calls {
		out[len(calls)-1-i] = c
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
