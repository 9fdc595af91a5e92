// Package main provides the CLI entry point for vtcode, a terminal coding
// agent that pairs an LLM with a sandboxed tool registry over a workspace.
//
// # Basic Usage
//
// Start an interactive session:
//
//	vtcode chat
//
// Summarize the current workspace:
//
//	vtcode analyze deep json
//
// Scaffold a new workspace:
//
//	vtcode init
//
// # Environment Variables
//
//   - <PROVIDER>_API_KEY / <PROVIDER>_BASE_URL: per-provider credentials.
//   - VTCODE_COMMANDS_{ALLOW,DENY}_{LIST,REGEX,GLOB}: command policy overrides.
//   - VTCODE_FUSE_{ENTRY,DEPTH,TOKEN,BYTES}: tool output sanitization tuning.
//   - VTCODE_LOCAL_TIMEZONE / TZ: MCP default timezone.
//   - VTCODE_NO_UNICODE: disable unicode glyphs in terminal output.
//   - VTCODE_UPDATE_*: self-update channel/manifest overrides.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// doubleInterruptWindow bounds S6: two Ctrl-C keystrokes within this window
// end the process instead of only cancelling the in-flight turn.
const doubleInterruptWindow = 500 * time.Millisecond

// interrupts tracks Ctrl-C state across the process lifetime. A registered
// turnCancel lets the first interrupt cancel only the in-flight turn; a
// second interrupt inside doubleInterruptWindow always escalates to process
// exit, registered turn or not.
var interrupts struct {
	mu         sync.Mutex
	lastSignal time.Time
	turnCancel context.CancelFunc
}

// registerTurnCancel records the cancel func for the currently running turn
// so the next SIGINT can target it instead of the whole process. Pass nil
// when no turn is in flight.
func registerTurnCancel(cancel context.CancelFunc) {
	interrupts.mu.Lock()
	interrupts.turnCancel = cancel
	interrupts.mu.Unlock()
}

// watchInterrupts cancels rootCancel on SIGTERM, or on a second SIGINT
// delivered within doubleInterruptWindow of the first. A lone SIGINT cancels
// the registered turn, if any, and otherwise falls back to ending the
// process.
func watchInterrupts(rootCancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGTERM {
				rootCancel()
				return
			}

			now := time.Now()
			interrupts.mu.Lock()
			sinceLast := now.Sub(interrupts.lastSignal)
			interrupts.lastSignal = now
			turnCancel := interrupts.turnCancel
			interrupts.mu.Unlock()

			if sinceLast <= doubleInterruptWindow {
				rootCancel()
				return
			}
			if turnCancel != nil {
				turnCancel()
				continue
			}
			rootCancel()
			return
		}
	}()
}

// Build information, populated by ldflags during release builds.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags holds the persistent flags consumed directly by the core
// per SPEC_FULL.md §6.
type globalFlags struct {
	workspace       string
	model           string
	provider        string
	fullAuto        bool
	reasoningEffort string
}

var flags globalFlags

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchInterrupts(cancel)
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

// buildRootCmd assembles the command tree. Kept separate from main for
// testability.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vtcode",
		Short: "vtcode - terminal coding agent",
		Long: `vtcode pairs an LLM with a sandboxed tool registry over a workspace.

It reads and edits files, runs commands under a PTY, and tracks turns
against a token budget, persisting state under .vtcode/ in the workspace
root.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.workspace, "workspace", ".", "Workspace root directory")
	rootCmd.PersistentFlags().StringVar(&flags.model, "model", "", "Model id override")
	rootCmd.PersistentFlags().StringVar(&flags.provider, "provider", "", "LLM provider override")
	rootCmd.PersistentFlags().BoolVar(&flags.fullAuto, "full-auto", false, "Skip tool approval prompts (elevated tools still gated)")
	rootCmd.PersistentFlags().StringVar(&flags.reasoningEffort, "reasoning-effort", "", "Reasoning effort override (low, medium, high)")

	rootCmd.AddCommand(
		buildChatCmd(),
		buildAnalyzeCmd(),
		buildInitCmd(),
		buildA2ACmd(),
		buildUpdateCmd(),
	)

	return rootCmd
}

// exitCodeFor maps a returned error to the §6 exit-code contract.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if strings.Contains(err.Error(), "usage") {
		return 2
	}
	if strings.Contains(strings.ToLower(err.Error()), "interrupted") || strings.Contains(err.Error(), "cancelled") {
		return 130
	}
	return 1
}
