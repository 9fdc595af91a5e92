package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vtcode-ai/vtcode/internal/agent"
	"github.com/vtcode-ai/vtcode/internal/sessions"
	"github.com/vtcode-ai/vtcode/pkg/models"
)

func buildChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive agent session in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}
	return cmd
}

func runChat(cmd *cobra.Command) error {
	workspaceRoot := flags.workspace
	cfg, err := loadConfig(workspaceRoot)
	if err != nil {
		return fmt.Errorf("usage: load config: %w", err)
	}

	runtime, store, closeStore, err := newAgentRuntime(cfg, workspaceRoot)
	if err != nil {
		return err
	}
	defer closeStore()

	session, err := store.GetOrCreate(cmd.Context(), workspaceRoot)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "vtcode session %s (workspace %s, model %s)\n", session.SessionID, workspaceRoot, cfg.LLM.DefaultModel)
	fmt.Fprintln(out, "Type a message, or !<command> to run a shell command directly. Ctrl-D to exit.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "!") {
			if err := runBashModeTurn(cmd.Context(), store, session, strings.TrimPrefix(line, "!"), out); err != nil {
				fmt.Fprintf(out, "command failed: %v\n", err)
			}
			continue
		}

		turnCtx, turnCancel := context.WithCancel(cmd.Context())
		registerTurnCancel(turnCancel)
		err := runChatTurn(turnCtx, runtime, session, line, out)
		registerTurnCancel(nil)
		turnCancel()

		if err != nil {
			if cmd.Context().Err() != nil {
				return fmt.Errorf("interrupted: %w", err)
			}
			if turnCtx.Err() != nil {
				fmt.Fprintln(out, "\nturn cancelled")
				continue
			}
			fmt.Fprintf(out, "turn failed: %v\n", err)
		}
	}
	return scanner.Err()
}

// runChatTurn sends one user message through the runtime and streams the
// response to out, per the S1 two-round-trip pattern.
func runChatTurn(ctx context.Context, runtime *agent.AgenticRuntime, session *models.Session, text string, out io.Writer) error {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.SessionID,
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	chunks, err := runtime.Process(ctx, session, msg)
	if err != nil {
		return err
	}
	for chunk := range chunks {
		if chunk.Error != nil {
			return chunk.Error
		}
		if chunk.Text != "" {
			fmt.Fprint(out, chunk.Text)
		}
		if chunk.ToolEvent != nil {
			fmt.Fprintf(out, "\n[tool] %s\n", chunk.ToolEvent.ToolName)
		}
	}
	fmt.Fprintln(out)
	return nil
}

// runBashModeTurn implements S2: the orchestrator bypasses the model,
// executes the command directly, and synthesizes a matching
// Assistant+ToolResponse pair so history stays consistent with P1.
func runBashModeTurn(ctx context.Context, store sessions.Store, session *models.Session, command string, out io.Writer) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("empty command")
	}

	execCmd := exec.CommandContext(ctx, "bash", "-c", command)
	execCmd.Dir = flags.workspace
	output, runErr := execCmd.CombinedOutput()
	fmt.Fprint(out, string(output))

	callID := uuid.NewString()
	assistant := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.SessionID,
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: callID, Name: "bash_mode"}},
		CreatedAt: time.Now(),
	}
	if err := store.AppendMessage(ctx, session.SessionID, assistant); err != nil {
		return fmt.Errorf("persist bash-mode call: %w", err)
	}

	toolMsg := &models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.SessionID,
		Role:       models.RoleTool,
		ToolCallID: callID,
		Content:    string(output),
		CreatedAt:  time.Now(),
	}
	if err := store.AppendMessage(ctx, session.SessionID, toolMsg); err != nil {
		return fmt.Errorf("persist bash-mode result: %w", err)
	}
	return runErr
}
