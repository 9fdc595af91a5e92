// Package a2a implements a minimal Agent2Agent protocol surface: an HTTP
// server exposing agent-card discovery and JSON-RPC task management, plus a
// client for talking to a remote vtcode instance's a2a endpoints.
package a2a

import (
	"encoding/json"
	"time"
)

// TaskState tracks a submitted task through its lifecycle.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// Task is the unit of work tracked by the a2a server.
type Task struct {
	ID        string    `json:"id"`
	ContextID string    `json:"context_id,omitempty"`
	State     TaskState `json:"state"`
	Message   string    `json:"message"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentCard is served at /.well-known/agent-card.json for discovery.
type AgentCard struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	URL                string   `json:"url"`
	Version             string   `json:"version"`
	Capabilities       []string `json:"capabilities"`
	DefaultInputModes  []string `json:"default_input_modes"`
	DefaultOutputModes []string `json:"default_output_modes"`
	PushNotifications  bool     `json:"push_notifications"`
}

// rpcRequest is a JSON-RPC 2.0 envelope for the /a2a endpoint.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
