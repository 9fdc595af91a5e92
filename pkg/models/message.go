// Package models provides the domain types shared across the agent runtime:
// messages, tool calls, sessions, thread events, and the supporting records
// the orchestrator persists or emits.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies a message's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant's request to invoke a tool. Input is always a
// serialized JSON object, never a raw scalar.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"arguments_json"`
}

// Attachment is a binary artifact (image, file, video, audio) carried
// alongside a message or tool result, inlined as a data: URL when no
// external URL is available.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ToolResult is a tool's response to a ToolCall, folded into a ToolResponse
// message by the orchestrator.
type ToolResult struct {
	ToolCallID  string       `json:"tool_call_id"`
	Content     string       `json:"content"`
	IsError     bool         `json:"is_error,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Direction marks whether a persisted message arrived from the user or was
// produced by the agent, independent of Role (a ToolResponse message is
// inbound even though it answers an Assistant tool call).
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is the tagged variant over system/user/assistant/tool-response
// content described in the data model: System, User, Assistant(text,
// tool_calls?), ToolResponse(call_id, content). All four shapes are
// represented by one struct with role-specific fields left empty.
type Message struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// BranchID scopes the message to a conversation fork when the session
	// store supports branch-aware history; empty for the primary branch.
	BranchID  string    `json:"branch_id,omitempty"`
	Direction Direction `json:"direction,omitempty"`

	Role Role `json:"role"`

	// Content is the visible text. For an Assistant message it may be
	// empty when the turn is tool-calls-only.
	Content string `json:"content,omitempty"`

	// ToolCalls is set only on Assistant messages that request tool
	// invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which ToolCall this message answers. Set only
	// on Role == RoleTool messages carrying a single result.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolResults carries one or more tool outcomes when a single Role ==
	// RoleTool message answers several calls from the same Assistant turn.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Reasoning carries a provider's visible reasoning/thinking trace,
	// kept separate from Content since it is not part of the final answer.
	Reasoning string `json:"reasoning,omitempty"`

	// ThoughtSignature is an opaque, provider-specific token (e.g. Gemini's
	// thought signatures) that must be preserved verbatim and echoed back
	// on the next request. The core never parses it.
	ThoughtSignature string `json:"thought_signature,omitempty"`

	// Metadata carries out-of-band annotations (e.g. summary markers) that
	// do not affect wire semantics with the model provider.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Attachments carries binary content (images, files) sent with a User
	// message or returned by a tool call folded into a ToolResponse.
	Attachments []Attachment `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsToolResponse reports whether m is a ToolResponse message.
func (m Message) IsToolResponse() bool {
	return m.Role == RoleTool && m.ToolCallID != ""
}

// History is an ordered sequence of Messages making up a conversation.
//
// Invariants:
//   - I1: a ToolResponse must be reachable from the Assistant message that
//     issued its ToolCall without another Assistant message intervening.
//   - I2: tool-call/tool-response pairs are never split across a
//     summarization boundary.
type History struct {
	Messages []Message `json:"messages"`
}

// Append adds a message to the end of the history.
func (h *History) Append(m Message) {
	h.Messages = append(h.Messages, m)
}

// PendingToolCallIDs returns the IDs of tool calls issued by the most
// recent Assistant message that have not yet been answered by a
// ToolResponse later in the history.
func (h *History) PendingToolCallIDs() []string {
	answered := make(map[string]bool)
	var pending []string
	for _, m := range h.Messages {
		if m.Role == RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}
	for i := len(h.Messages) - 1; i >= 0; i-- {
		m := h.Messages[i]
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				pending = append(pending, tc.ID)
			}
		}
		break
	}
	return pending
}

// SafeSplitIndex returns the largest index i (0 <= i <= len(Messages)) such
// that truncating/summarizing Messages[:i] never separates a tool call from
// its response (I2). It walks backward from a preferred cut point, moving
// earlier until landing on a boundary with no pending tool call.
func (h *History) SafeSplitIndex(preferred int) int {
	if preferred > len(h.Messages) {
		preferred = len(h.Messages)
	}
	if preferred < 0 {
		preferred = 0
	}
	for i := preferred; i > 0; i-- {
		if safeBoundary(h.Messages[:i]) {
			return i
		}
	}
	return 0
}

func safeBoundary(prefix []Message) bool {
	issued := make(map[string]bool)
	for _, m := range prefix {
		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				issued[tc.ID] = true
			}
		}
		if m.Role == RoleTool && m.ToolCallID != "" {
			delete(issued, m.ToolCallID)
		}
	}
	return len(issued) == 0
}

// Turn is a single user-initiated interaction producing one or more
// assistant/tool cycles until a terminating condition.
type Turn struct {
	TurnID    string    `json:"turn_id"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ParametersSchema json.RawMessage `json:"parameters_schema"`
}

// ToolSummary describes a registered tool for listing/aliasing purposes,
// including MCP-provided tools namespaced as mcp_<provider>_<tool>.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Source      string          `json:"source"`
	Namespace   string          `json:"namespace,omitempty"`
	Canonical   string          `json:"canonical"`
}

// PolicyDecisionKind enumerates the outcomes of a tool or command policy
// check.
type PolicyDecisionKind string

const (
	PolicyAllow         PolicyDecisionKind = "allow"
	PolicyDeny          PolicyDecisionKind = "deny"
	PolicyNeedsApproval  PolicyDecisionKind = "needs_approval"
)

// ProposedAmendment is a prefix pattern that, if installed into the policy,
// would auto-allow future matching commands.
type ProposedAmendment struct {
	Tokens []string `json:"tokens"`
}

// PolicyDecision is the result of evaluating a tool invocation or command
// against policy.
type PolicyDecision struct {
	Kind      PolicyDecisionKind `json:"kind"`
	Reason    string             `json:"reason,omitempty"`
	Amendment *ProposedAmendment `json:"amendment,omitempty"`
}

// Command is an argv vector plus the working directory it would run in.
// A shell invocation (bash/sh/zsh -c/-lc/-ilc) is parsed into its
// constituent commands before evaluation.
type Command struct {
	Argv       []string `json:"argv"`
	WorkingDir string   `json:"working_dir"`
}

// CacheEntry is a tool-result cache record keyed by (tool name,
// canonicalized args json) at the call site.
type CacheEntry struct {
	Value        json.RawMessage `json:"value"`
	SizeBytes    int             `json:"size_bytes"`
	InsertedAt   time.Time       `json:"inserted_at"`
	AccessCount  int             `json:"access_count"`
}

// TokenBudgetSnapshot describes context-window utilization at a point in
// time.
type TokenBudgetSnapshot struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CachedTokens     int     `json:"cached_tokens,omitempty"`
	ModelMax         int     `json:"model_max"`
	WarningThreshold float64 `json:"warning_threshold"`
	AlertThreshold   float64 `json:"alert_threshold"`
}

// Utilization returns PromptTokens / ModelMax, or 0 if ModelMax is unset.
func (s TokenBudgetSnapshot) Utilization() float64 {
	if s.ModelMax == 0 {
		return 0
	}
	return float64(s.PromptTokens) / float64(s.ModelMax)
}

// ToolHealthSample is one observation in a tool's sliding health window.
type ToolHealthSample struct {
	Success   bool
	LatencyMS int64
}

// ToolHealthStats tracks a tool's recent reliability.
type ToolHealthStats struct {
	ToolName            string             `json:"tool_name"`
	Window              []ToolHealthSample `json:"-"`
	WindowSize          int                `json:"window_size"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	LifetimeSuccesses   int64              `json:"lifetime_successes"`
	LifetimeFailures    int64              `json:"lifetime_failures"`
}

// DefaultToolHealthWindow is the sliding-window size used when none is
// configured.
const DefaultToolHealthWindow = 20

// UnhealthyConsecutiveFailureThreshold marks a tool unhealthy once this many
// consecutive calls have failed.
const UnhealthyConsecutiveFailureThreshold = 3

// UnhealthyWindowedFailureRate marks a tool unhealthy once, given at least 5
// samples, the windowed failure rate exceeds this fraction.
const UnhealthyWindowedFailureRate = 0.6

// Record appends a health observation, evicting the oldest sample once the
// window is full.
func (s *ToolHealthStats) Record(success bool, latencyMS int64) {
	windowSize := s.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultToolHealthWindow
	}
	s.Window = append(s.Window, ToolHealthSample{Success: success, LatencyMS: latencyMS})
	if len(s.Window) > windowSize {
		s.Window = s.Window[len(s.Window)-windowSize:]
	}
	if success {
		s.LifetimeSuccesses++
		s.ConsecutiveFailures = 0
	} else {
		s.LifetimeFailures++
		s.ConsecutiveFailures++
	}
}

// Unhealthy reports whether the tool should be circuit-broken.
func (s ToolHealthStats) Unhealthy() bool {
	if s.ConsecutiveFailures >= UnhealthyConsecutiveFailureThreshold {
		return true
	}
	if len(s.Window) < 5 {
		return false
	}
	failures := 0
	for _, sample := range s.Window {
		if !sample.Success {
			failures++
		}
	}
	rate := float64(failures) / float64(len(s.Window))
	return rate > UnhealthyWindowedFailureRate
}

// EditingMode controls whether the agent may write to the workspace.
type EditingMode string

const (
	EditingModeEdit EditingMode = "edit"
	EditingModePlan EditingMode = "plan"
)

// Session is a single local agent session.
type Session struct {
	SessionID string `json:"session_id"`

	// Key is the lookup key a store indexes sessions by, typically the
	// workspace root a session is scoped to.
	Key string `json:"key,omitempty"`

	// Title is a human-readable label shown in session listings, usually
	// derived from the first user message.
	Title         string      `json:"title,omitempty"`
	WorkspaceRoot string      `json:"workspace_root"`
	EditingMode   EditingMode `json:"editing_mode"`
	Autonomous    bool        `json:"autonomous"`

	Stats          SessionStats          `json:"stats"`
	DecisionLedger []DecisionLedgerEntry `json:"decision_ledger,omitempty"`

	// Metadata carries store-specific annotations that do not affect
	// orchestration semantics.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStats is the running tally of a session's resource usage.
type SessionStats struct {
	Turns        int   `json:"turns"`
	ToolCalls    int   `json:"tool_calls"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// DecisionOutcomeKind enumerates the result of a recorded decision.
type DecisionOutcomeKind string

const (
	DecisionOutcomeSuccess DecisionOutcomeKind = "success"
	DecisionOutcomeFailure DecisionOutcomeKind = "failure"
)

// DecisionOutcome is the recorded result of a pipeline step tied to a
// decision ledger entry.
type DecisionOutcome struct {
	Kind              DecisionOutcomeKind `json:"kind"`
	Error             string              `json:"error,omitempty"`
	RecoveryAttempts  int                 `json:"recovery_attempts,omitempty"`
	ContextPreserved  bool                `json:"context_preserved,omitempty"`
}

// DecisionLedgerEntry is a structured, bounded per-session log of
// consequential agent decisions, injected into the system prompt each turn
// when enabled.
type DecisionLedgerEntry struct {
	DecisionID string            `json:"decision_id"`
	Action     string            `json:"action"`
	Rationale  string            `json:"rationale"`
	Outcome    *DecisionOutcome  `json:"outcome,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ApprovalDecision enumerates the resolution of an ApprovalRequest.
type ApprovalDecision string

const (
	ApprovalPending  ApprovalDecision = "pending"
	ApprovalAllowed  ApprovalDecision = "allowed"
	ApprovalDenied   ApprovalDecision = "denied"
)

// ApprovalRequest is persisted when a NeedsApproval decision cannot be
// resolved synchronously.
type ApprovalRequest struct {
	ID         string           `json:"id"`
	ToolCallID string           `json:"tool_call_id"`
	ToolName   string           `json:"tool_name"`
	Input      json.RawMessage  `json:"input"`
	SessionID  string           `json:"session_id"`
	Reason     string           `json:"reason"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Decision   ApprovalDecision `json:"decision"`
	DecidedAt  time.Time        `json:"decided_at,omitempty"`
	DecidedBy  string           `json:"decided_by,omitempty"`
}

// Expired reports whether the request's TTL has elapsed relative to now.
func (r ApprovalRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
