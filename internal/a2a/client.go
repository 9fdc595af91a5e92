package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a remote vtcode instance's a2a endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Discover(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/.well-known/agent-card.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return &card, nil
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	reqBody := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: paramsJSON}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/a2a", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("a2a error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	resultJSON, err := json.Marshal(rpcResp.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(resultJSON, result)
}

func (c *Client) SendTask(ctx context.Context, message, contextID string) (*Task, error) {
	var task Task
	err := c.call(ctx, "tasks/send", sendTaskParams{Message: message, ContextID: contextID}, &task)
	return &task, err
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	err := c.call(ctx, "tasks/get", taskIDParams{TaskID: taskID}, &task)
	return &task, err
}

func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	err := c.call(ctx, "tasks/cancel", taskIDParams{TaskID: taskID}, &task)
	return &task, err
}

func (c *Client) ListTasks(ctx context.Context, contextID string, limit int) ([]*Task, error) {
	var tasks []*Task
	err := c.call(ctx, "tasks/list", listTasksParams{ContextID: contextID, Limit: limit}, &tasks)
	return tasks, err
}

// StreamTask follows /a2a/stream for a task, invoking onEvent for each SSE
// data frame until the stream closes or ctx is cancelled.
func (c *Client) StreamTask(ctx context.Context, taskID string, onEvent func(*Task)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/a2a/stream?task_id="+taskID, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &task); err != nil {
			continue
		}
		onEvent(&task)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
