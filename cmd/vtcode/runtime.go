package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/vtcode-ai/vtcode/internal/agent"
	"github.com/vtcode-ai/vtcode/internal/agent/providers"
	"github.com/vtcode-ai/vtcode/internal/audit"
	"github.com/vtcode-ai/vtcode/internal/commandsafety"
	"github.com/vtcode-ai/vtcode/internal/config"
	"github.com/vtcode-ai/vtcode/internal/mcp"
	"github.com/vtcode-ai/vtcode/internal/sessions"
	execTools "github.com/vtcode-ai/vtcode/internal/tools/exec"
	"github.com/vtcode-ai/vtcode/internal/tools/files"
	"github.com/vtcode-ai/vtcode/internal/workspace"
)

// loadConfig reads .vtcode/config.toml under the workspace root and layers
// the global --model/--provider/--reasoning-effort flags over it.
func loadConfig(workspaceRoot string) (*config.Config, error) {
	path := filepath.Join(workspaceRoot, ".vtcode", "config.toml")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Workspace.Root = workspaceRoot

	if strings.TrimSpace(flags.provider) != "" {
		cfg.LLM.DefaultProvider = flags.provider
	}
	if strings.TrimSpace(flags.model) != "" {
		cfg.LLM.DefaultModel = flags.model
	}
	if strings.TrimSpace(flags.reasoningEffort) != "" {
		cfg.LLM.ReasoningEffort = flags.reasoningEffort
	}
	return cfg, nil
}

// buildProvider constructs the configured LLM provider. Credentials are
// already resolved onto cfg.LLM.Providers by config.Load's VTCODE_* /
// <PROVIDER>_API_KEY overrides.
func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if name == "" {
		name = "anthropic"
	}
	provCfg := cfg.LLM.Providers[name]

	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       provCfg.APIKey,
			BaseURL:      provCfg.BaseURL,
			MaxRetries:   3,
			RetryDelay:   time.Second,
			DefaultModel: firstNonEmpty(cfg.LLM.DefaultModel, provCfg.DefaultModel),
		})
	case "openai":
		return providers.NewOpenAIProvider(provCfg.APIKey), nil
	case "google", "gemini":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       provCfg.APIKey,
			MaxRetries:   3,
			RetryDelay:   time.Second,
			DefaultModel: firstNonEmpty(cfg.LLM.DefaultModel, provCfg.DefaultModel),
		})
	case "openrouter":
		return providers.NewOpenRouterProvider(providers.OpenRouterConfig{
			APIKey:       provCfg.APIKey,
			DefaultModel: firstNonEmpty(cfg.LLM.DefaultModel, provCfg.DefaultModel),
		})
	case "ollama":
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      firstNonEmpty(provCfg.BaseURL, "http://localhost:11434"),
			DefaultModel: firstNonEmpty(cfg.LLM.DefaultModel, provCfg.DefaultModel),
			Timeout:      2 * time.Minute,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (and no fallback configured)", name)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// buildSessionStore opens the sqlite-backed store at .vtcode/state.db when
// session persistence is enabled, otherwise an in-process memory store.
func buildSessionStore(cfg *config.Config, workspaceRoot string) (sessions.Store, func() error, error) {
	if !cfg.Session.Persist {
		return sessions.NewMemoryStore(), func() error { return nil }, nil
	}
	dbPath := cfg.Session.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspaceRoot, dbPath)
	}
	store, err := sessions.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return store, store.Close, nil
}

// buildLoopConfig translates the workspace config's tool execution/approval
// sections into an agent.LoopConfig.
func buildLoopConfig(cfg *config.Config) *agent.LoopConfig {
	loopCfg := agent.DefaultLoopConfig()
	loopCfg.MaxIterations = cfg.Tools.Execution.MaxToolLoops
	loopCfg.ExecutorConfig = &agent.ExecutorConfig{
		MaxConcurrency:  cfg.Tools.Execution.Parallelism,
		DefaultTimeout:  time.Duration(cfg.Tools.Timeouts.NonPTYSeconds) * time.Second,
		DefaultRetries:  cfg.Tools.Execution.MaxToolRetries,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
	if cfg.Tools.Execution.MaxToolCallsPerTurn > 0 {
		loopCfg.MaxToolCalls = cfg.Tools.Execution.MaxToolCallsPerTurn
	}
	loopCfg.MaxWallTime = cfg.Tools.Execution.MaxToolWallClock

	if !flags.fullAuto {
		policy := &agent.ApprovalPolicy{
			Allowlist:       cfg.Tools.Approval.Allowlist,
			Denylist:        cfg.Tools.Approval.Denylist,
			SafeBins:        cfg.Tools.Approval.SafeBins,
			DefaultDecision: agent.ApprovalDecision(cfg.Tools.Approval.DefaultDecision),
			AskFallback:     cfg.Tools.Approval.AskFallback,
			RequestTTL:      cfg.Tools.Approval.RequestTTL,
		}
		loopCfg.ApprovalChecker = agent.NewApprovalChecker(policy)
	}
	return loopCfg
}

// buildToolEventStore chooses a tool-event store matching the session
// store's persistence: SQLite-backed sessions get SQLite-backed tool
// events, in-memory sessions get an in-memory tool-event log.
func buildToolEventStore(store sessions.Store) agent.ToolEventStore {
	if sqliteStore, ok := store.(*sessions.SQLiteStore); ok {
		eventStore, err := sessions.NewSQLToolEventStore(sqliteStore.DB())
		if err != nil {
			slog.Warn("tool event store unavailable, falling back to memory", "error", err)
			return sessions.NewMemoryToolEventStore()
		}
		return eventStore
	}
	return sessions.NewMemoryToolEventStore()
}

// newAgentRuntime wires a provider, session store, and the core tool
// registry (filesystem, exec, MCP) into a ready-to-use AgenticRuntime.
func newAgentRuntime(cfg *config.Config, workspaceRoot string) (*agent.AgenticRuntime, sessions.Store, func() error, error) {
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store, closeStore, err := buildSessionStore(cfg, workspaceRoot)
	if err != nil {
		return nil, nil, nil, err
	}

	loopCfg := buildLoopConfig(cfg)
	loopCfg.ToolEvents = buildToolEventStore(store)

	runtime := agent.NewAgenticRuntime(provider, store, loopCfg)
	runtime.SetDefaultModel(cfg.LLM.DefaultModel)

	ws, err := workspace.Load(workspace.LoaderConfigFromConfig(cfg))
	if err != nil {
		closeStore()
		return nil, nil, nil, fmt.Errorf("load workspace: %w", err)
	}
	if ws.AgentsContent != "" {
		runtime.SetSystemPrompt(ws.AgentsContent)
	}

	registerCoreTools(runtime, cfg, workspaceRoot)

	if cfg.MCP.Enabled {
		mgr := mcp.NewManager(toMCPConfig(&cfg.MCP), slog.Default())
		registered := mcp.RegisterTools(runtime, mgr)
		slog.Info("mcp tools registered", "count", len(registered))
	}

	return runtime, store, closeStore, nil
}

// registerCoreTools attaches the filesystem and command-execution tools
// every session needs regardless of provider or MCP configuration.
func registerCoreTools(runtime *agent.AgenticRuntime, cfg *config.Config, workspaceRoot string) {
	fileCfg := files.Config{Workspace: workspaceRoot, MaxReadBytes: cfg.Tools.Fuse.Bytes}
	runtime.RegisterTool(files.NewReadTool(fileCfg))
	runtime.RegisterTool(files.NewWriteTool(fileCfg))
	runtime.RegisterTool(files.NewEditTool(fileCfg))
	runtime.RegisterTool(files.NewApplyPatchTool(fileCfg))

	manager := execTools.NewManager(workspaceRoot)
	execOpts := buildExecToolOptions(cfg, workspaceRoot)
	runtime.RegisterTool(execTools.NewExecTool("run_terminal_cmd", manager, execOpts...))
	runtime.RegisterTool(execTools.NewProcessTool(manager))
}

// buildExecToolOptions wires the §4.2 command-safety evaluator into every
// exec tool, backed by the workspace's permission audit log.
func buildExecToolOptions(cfg *config.Config, workspaceRoot string) []execTools.ExecToolOption {
	auditDir := cfg.Audit.Dir
	if auditDir == "" {
		auditDir = filepath.Join(workspaceRoot, ".vtcode", "audit")
	} else if !filepath.IsAbs(auditDir) {
		auditDir = filepath.Join(workspaceRoot, auditDir)
	}
	permLog := audit.NewPermissionLogger(auditDir, cfg.Audit.Enabled)

	evaluator, err := commandsafety.NewEvaluator(cfg.Commands, permLog)
	if err != nil {
		slog.Warn("command safety evaluator disabled", "error", err)
		return nil
	}
	return []execTools.ExecToolOption{execTools.WithCommandSafety(evaluator)}
}

func toMCPConfig(cfg *config.MCPConfig) *mcp.Config {
	servers := make([]*mcp.ServerConfig, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, &mcp.ServerConfig{
			ID:        s.ID,
			Name:      s.Name,
			Transport: mcp.TransportType(s.Transport),
			Command:   s.Command,
			Args:      s.Args,
			Env:       s.Env,
			WorkDir:   s.WorkDir,
			URL:       s.URL,
			Headers:   s.Headers,
			Timeout:   time.Duration(s.TimeoutSeconds) * time.Second,
			AutoStart: s.AutoStart,
		})
	}
	return &mcp.Config{Enabled: cfg.Enabled, Servers: servers}
}
