package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(runner TaskRunner) *Server {
	return NewServer(ServerConfig{
		ListenAddr: "127.0.0.1:0",
		BaseURL:    "http://127.0.0.1:0",
		Runner:     runner,
	})
}

func rpcCall(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: paramsJSON})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRPC(rec, req)

	var resp rpcResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandleAgentCard(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
	rec := httptest.NewRecorder()

	s.handleAgentCard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var card AgentCard
	if err := json.NewDecoder(rec.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.Name != "vtcode" {
		t.Errorf("card.Name = %q, want vtcode", card.Name)
	}
}

func TestRPCSendAndGetTask(t *testing.T) {
	s := newTestServer(func(ctx context.Context, message string) (string, error) {
		return "echo: " + message, nil
	})

	sendResp := rpcCall(t, s, "tasks/send", sendTaskParams{Message: "hello"})
	if sendResp.Error != nil {
		t.Fatalf("tasks/send error: %+v", sendResp.Error)
	}
	var sent Task
	remarshal(t, sendResp.Result, &sent)
	if sent.State != TaskStateCompleted {
		t.Fatalf("sent.State = %q, want %q", sent.State, TaskStateCompleted)
	}
	if sent.Result != "echo: hello" {
		t.Fatalf("sent.Result = %q", sent.Result)
	}

	getResp := rpcCall(t, s, "tasks/get", taskIDParams{TaskID: sent.ID})
	if getResp.Error != nil {
		t.Fatalf("tasks/get error: %+v", getResp.Error)
	}
	var fetched Task
	remarshal(t, getResp.Result, &fetched)
	if fetched.ID != sent.ID {
		t.Fatalf("fetched.ID = %q, want %q", fetched.ID, sent.ID)
	}
}

func TestRPCGetTaskNotFound(t *testing.T) {
	s := newTestServer(nil)
	resp := rpcCall(t, s, "tasks/get", taskIDParams{TaskID: "missing"})
	if resp.Error == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestRPCCancelTask(t *testing.T) {
	s := newTestServer(func(ctx context.Context, message string) (string, error) {
		return "", nil
	})
	sendResp := rpcCall(t, s, "tasks/send", sendTaskParams{Message: "hello"})
	var sent Task
	remarshal(t, sendResp.Result, &sent)

	cancelResp := rpcCall(t, s, "tasks/cancel", taskIDParams{TaskID: sent.ID})
	var canceled Task
	remarshal(t, cancelResp.Result, &canceled)
	if canceled.State != TaskStateCanceled {
		t.Fatalf("canceled.State = %q, want %q", canceled.State, TaskStateCanceled)
	}
}

func TestRPCListTasksFiltersByContext(t *testing.T) {
	s := newTestServer(func(ctx context.Context, message string) (string, error) { return "", nil })
	rpcCall(t, s, "tasks/send", sendTaskParams{Message: "a", ContextID: "ctx-1"})
	rpcCall(t, s, "tasks/send", sendTaskParams{Message: "b", ContextID: "ctx-2"})

	listResp := rpcCall(t, s, "tasks/list", listTasksParams{ContextID: "ctx-1"})
	var tasks []*Task
	remarshal(t, listResp.Result, &tasks)
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	if tasks[0].ContextID != "ctx-1" {
		t.Errorf("tasks[0].ContextID = %q, want ctx-1", tasks[0].ContextID)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	s := newTestServer(nil)
	resp := rpcCall(t, s, "tasks/unknown", struct{}{})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
}

func remarshal(t *testing.T, src any, dst any) {
	t.Helper()
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}
