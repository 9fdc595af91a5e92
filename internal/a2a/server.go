package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TaskRunner executes a task's message against the agent and returns the
// final text result. Implementations typically drive a single-turn
// agent.AgenticRuntime.Process call and collect its streamed chunks.
type TaskRunner func(ctx context.Context, message string) (string, error)

// ServerConfig configures the a2a HTTP listener.
type ServerConfig struct {
	ListenAddr string
	BaseURL    string
	JWTSecret  string
	EnablePush bool
	Runner     TaskRunner
	Logger     *slog.Logger
}

// Server serves the a2a protocol endpoints over HTTP.
type Server struct {
	cfg      ServerConfig
	store    *TaskStore
	card     AgentCard
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  NewTaskStore(),
		logger: logger,
		card: AgentCard{
			Name:               "vtcode",
			Description:        "Terminal coding agent exposed over the Agent2Agent protocol",
			URL:                cfg.BaseURL,
			Version:            "1.0",
			Capabilities:       []string{"tasks/send", "tasks/get", "tasks/cancel", "tasks/list"},
			DefaultInputModes:  []string{"text"},
			DefaultOutputModes: []string{"text"},
			PushNotifications:  cfg.EnablePush,
		},
	}
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", s.handleAgentCard)
	mux.Handle("/a2a", s.authMiddleware(http.HandlerFunc(s.handleRPC)))
	mux.Handle("/a2a/stream", s.authMiddleware(http.HandlerFunc(s.handleStream)))

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("a2a listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("a2a server error", "error", err)
		}
	}()

	s.logger.Info("a2a server listening", "addr", s.cfg.ListenAddr)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if strings.TrimSpace(s.cfg.JWTSecret) == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, -32700, "parse error: "+err.Error())
		return
	}

	switch req.Method {
	case "tasks/send":
		s.rpcSendTask(w, r.Context(), req)
	case "tasks/get":
		s.rpcGetTask(w, req)
	case "tasks/cancel":
		s.rpcCancelTask(w, req)
	case "tasks/list":
		s.rpcListTasks(w, req)
	default:
		writeRPCError(w, req.ID, -32601, "method not found: "+req.Method)
	}
}

type sendTaskParams struct {
	Message   string `json:"message"`
	ContextID string `json:"context_id,omitempty"`
}

func (s *Server) rpcSendTask(w http.ResponseWriter, ctx context.Context, req rpcRequest) {
	var params sendTaskParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
		return
	}
	if strings.TrimSpace(params.Message) == "" {
		writeRPCError(w, req.ID, -32602, "message is required")
		return
	}

	task := s.store.Create(params.ContextID, params.Message)
	s.runTask(ctx, task.ID)
	writeRPCResult(w, req.ID, task)
}

// runTask executes synchronously; real deployments with slow turns would
// run this in a goroutine and let tasks/get poll state, which the stream
// endpoint already supports.
func (s *Server) runTask(ctx context.Context, taskID string) {
	task, ok := s.store.Get(taskID)
	if !ok {
		return
	}
	s.store.Update(taskID, func(t *Task) { t.State = TaskStateWorking })

	if s.cfg.Runner == nil {
		s.store.Update(taskID, func(t *Task) {
			t.State = TaskStateFailed
			t.Error = "no task runner configured"
		})
		return
	}

	result, err := s.cfg.Runner(ctx, task.Message)
	s.store.Update(taskID, func(t *Task) {
		if err != nil {
			t.State = TaskStateFailed
			t.Error = err.Error()
			return
		}
		t.State = TaskStateCompleted
		t.Result = result
	})
}

type taskIDParams struct {
	TaskID string `json:"task_id"`
}

func (s *Server) rpcGetTask(w http.ResponseWriter, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
		return
	}
	task, ok := s.store.Get(params.TaskID)
	if !ok {
		writeRPCError(w, req.ID, -32000, "task not found")
		return
	}
	writeRPCResult(w, req.ID, task)
}

func (s *Server) rpcCancelTask(w http.ResponseWriter, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
		return
	}
	task, ok := s.store.Update(params.TaskID, func(t *Task) { t.State = TaskStateCanceled })
	if !ok {
		writeRPCError(w, req.ID, -32000, "task not found")
		return
	}
	writeRPCResult(w, req.ID, task)
}

type listTasksParams struct {
	ContextID string `json:"context_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) rpcListTasks(w http.ResponseWriter, req rpcRequest) {
	var params listTasksParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
			return
		}
	}
	writeRPCResult(w, req.ID, s.store.List(params.ContextID, params.Limit))
}

// handleStream polls a task's state and emits one SSE event per state
// transition until the task reaches a terminal state or the client
// disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var lastState TaskState
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			task, ok := s.store.Get(taskID)
			if !ok {
				fmt.Fprintf(w, "event: error\ndata: task not found\n\n")
				flusher.Flush()
				return
			}
			if task.State == lastState {
				continue
			}
			lastState = task.State
			data, err := json.Marshal(task)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if task.State == TaskStateCompleted || task.State == TaskStateFailed || task.State == TaskStateCanceled {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
