package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vtcode-ai/vtcode/internal/a2a"
	"github.com/vtcode-ai/vtcode/internal/agent"
	"github.com/vtcode-ai/vtcode/internal/sessions"
	"github.com/vtcode-ai/vtcode/pkg/models"
)

// a2aShutdownTimeout bounds how long "a2a serve" waits for in-flight
// requests to drain on interrupt.
const a2aShutdownTimeout = 5 * time.Second

func buildA2ACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "a2a",
		Short: "Serve or talk to agents over the Agent2Agent protocol",
	}
	cmd.AddCommand(
		buildA2AServeCmd(),
		buildA2ADiscoverCmd(),
		buildA2ASendTaskCmd(),
		buildA2AGetTaskCmd(),
		buildA2ACancelTaskCmd(),
		buildA2AListTasksCmd(),
	)
	return cmd
}

func buildA2AServeCmd() *cobra.Command {
	var (
		host       string
		port       int
		baseURL    string
		enablePush bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve vtcode as an a2a agent over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			listenAddr := net.JoinHostPort(host, strconv.Itoa(port))
			if cfg.A2A.ListenAddr != "" && !cmd.Flags().Changed("host") && !cmd.Flags().Changed("port") {
				listenAddr = cfg.A2A.ListenAddr
			}

			srv := a2a.NewServer(a2a.ServerConfig{
				ListenAddr: listenAddr,
				BaseURL:    baseURL,
				JWTSecret:  cfg.A2A.JWTSecret,
				EnablePush: enablePush,
				Runner:     newTaskRunner(runtime, store, workspaceRoot),
			})

			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a2aShutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host to bind the server to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for the agent (used in the agent card)")
	cmd.Flags().BoolVar(&enablePush, "enable-push", false, "Enable push notifications via webhooks")
	return cmd
}

// newTaskRunner drives one agent turn per a2a task, reusing the same
// in-process workspace session so tasks share tool registry and history.
func newTaskRunner(runtime *agent.AgenticRuntime, store sessions.Store, workspaceRoot string) a2a.TaskRunner {
	return func(ctx context.Context, message string) (string, error) {
		session, err := store.GetOrCreate(ctx, workspaceRoot)
		if err != nil {
			return "", fmt.Errorf("open session: %w", err)
		}
		msg := &models.Message{
			SessionID: session.SessionID,
			Role:      models.RoleUser,
			Content:   message,
		}
		chunks, err := runtime.Process(ctx, session, msg)
		if err != nil {
			return "", err
		}
		var result string
		for chunk := range chunks {
			if chunk.Error != nil {
				return result, chunk.Error
			}
			result += chunk.Text
		}
		return result, nil
	}
}

func buildA2ADiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <agent_url>",
		Short: "Fetch and display a remote agent's capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a2a.NewClient(args[0])
			card, err := client.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name: %s\ndescription: %s\nversion: %s\ncapabilities: %v\n",
				card.Name, card.Description, card.Version, card.Capabilities)
			return nil
		},
	}
}

func buildA2ASendTaskCmd() *cobra.Command {
	var (
		stream    bool
		contextID string
	)
	cmd := &cobra.Command{
		Use:   "send-task <agent_url> <message>",
		Short: "Send a task to a remote a2a agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a2a.NewClient(args[0])
			task, err := client.SendTask(cmd.Context(), args[1], contextID)
			if err != nil {
				return fmt.Errorf("send task: %w", err)
			}
			out := cmd.OutOrStdout()
			if !stream {
				fmt.Fprintf(out, "task %s: %s\n", task.ID, task.State)
				return nil
			}
			return client.StreamTask(cmd.Context(), task.ID, func(t *a2a.Task) {
				fmt.Fprintf(out, "task %s: %s\n", t.ID, t.State)
				if t.Result != "" {
					fmt.Fprintln(out, t.Result)
				}
				if t.Error != "" {
					fmt.Fprintln(out, "error:", t.Error)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Wait for task completion and stream progress")
	cmd.Flags().StringVar(&contextID, "context-id", "", "Context ID for conversation tracking")
	return cmd
}

func buildA2AGetTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-task <agent_url> <task_id>",
		Short: "Retrieve a task's current state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a2a.NewClient(args[0])
			task, err := client.GetTask(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s: %s\n%s\n", task.ID, task.State, task.Result)
			return nil
		},
	}
}

func buildA2ACancelTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-task <agent_url> <task_id>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a2a.NewClient(args[0])
			task, err := client.CancelTask(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("cancel task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s: %s\n", task.ID, task.State)
			return nil
		},
	}
}

func buildA2AListTasksCmd() *cobra.Command {
	var (
		contextID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list-tasks <agent_url>",
		Short: "List recent tasks on a remote a2a agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a2a.NewClient(args[0])
			tasks, err := client.ListTasks(cmd.Context(), contextID, limit)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, task := range tasks {
				fmt.Fprintf(out, "%s  %-10s  %s\n", task.ID, task.State, task.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contextID, "context-id", "", "Filter by context ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks to return")
	return cmd
}
