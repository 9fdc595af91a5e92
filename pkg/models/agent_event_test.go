package models

import (
	"encoding/json"
	"testing"
)

func TestThreadEventTypeConstants(t *testing.T) {
	tests := []struct {
		constant ThreadEventType
		expected string
	}{
		{ThreadEventStarted, "thread.started"},
		{ThreadEventTurnStarted, "turn.started"},
		{ThreadEventTurnCompleted, "turn.completed"},
		{ThreadEventTurnFailed, "turn.failed"},
		{ThreadEventItemStarted, "item.started"},
		{ThreadEventItemUpdated, "item.updated"},
		{ThreadEventItemCompleted, "item.completed"},
		{ThreadEventError, "error"},
	}
	for _, tt := range tests {
		if string(tt.constant) != tt.expected {
			t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
		}
	}
}

func TestNewThreadEventStampsSchemaVersion(t *testing.T) {
	e := NewThreadEvent(ThreadEventTurnStarted)
	if e.SchemaVersion != CurrentThreadEventSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", e.SchemaVersion, CurrentThreadEventSchemaVersion)
	}
	if e.Type != ThreadEventTurnStarted {
		t.Errorf("Type = %q", e.Type)
	}
	if e.Time.IsZero() {
		t.Error("Time should be stamped")
	}
}

func TestThreadEventItemJSONRoundTrip(t *testing.T) {
	exitStatus := 0
	e := ThreadEvent{
		SchemaVersion: 1,
		Type:          ThreadEventItemCompleted,
		RunID:         "run-1",
		TurnID:        "turn-1",
		ItemID:        "item-1",
		Details: &ThreadItemDetails{
			Kind:       ThreadItemCommandExecution,
			Command:    "ls -la",
			ExitStatus: &exitStatus,
			Output:     "total 0",
		},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ThreadEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Details == nil || decoded.Details.Kind != ThreadItemCommandExecution {
		t.Fatalf("decoded Details = %+v", decoded.Details)
	}
	if decoded.Details.Command != "ls -la" {
		t.Errorf("Command = %q", decoded.Details.Command)
	}
	if decoded.Details.ExitStatus == nil || *decoded.Details.ExitStatus != 0 {
		t.Errorf("ExitStatus = %v", decoded.Details.ExitStatus)
	}
}

func TestThreadItemKindConstants(t *testing.T) {
	tests := []struct {
		constant ThreadItemKind
		expected string
	}{
		{ThreadItemAgentMessage, "agent_message"},
		{ThreadItemReasoning, "reasoning"},
		{ThreadItemCommandExecution, "command_execution"},
		{ThreadItemFileChange, "file_change"},
		{ThreadItemMCPToolCall, "mcp_tool_call"},
		{ThreadItemWebSearch, "web_search"},
		{ThreadItemError, "error"},
	}
	for _, tt := range tests {
		if string(tt.constant) != tt.expected {
			t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
		}
	}
}

func TestRunStatsZeroValue(t *testing.T) {
	var stats RunStats
	if stats.Turns != 0 || stats.Cancelled || stats.TimedOut {
		t.Errorf("zero-value RunStats should have no turns/flags set, got %+v", stats)
	}
}
