// Package config loads and validates .vtcode/config.toml and applies
// environment-variable overrides per the VTCODE_* variable table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration loaded once per process and snapshotted
// per session. Runtime overrides (e.g. /model) patch a Snapshot, never this
// value directly.
type Config struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	LLM       LLMConfig       `toml:"llm"`
	Commands  CommandsConfig  `toml:"commands"`
	Tools     ToolsConfig     `toml:"tools"`
	Context   ContextConfig   `toml:"context"`
	Logging   LoggingConfig   `toml:"logging"`
	Audit     AuditConfig     `toml:"audit"`
	Session   SessionConfig   `toml:"session"`
	A2A       A2AConfig       `toml:"a2a"`
	MCP       MCPConfig       `toml:"mcp"`
}

// WorkspaceConfig describes the sandboxed root the agent operates in.
type WorkspaceConfig struct {
	Root        string `toml:"root"`
	IgnoreFile  string `toml:"ignore_file"`
	AgentsFile  string `toml:"agents_file"`
	IndexDir    string `toml:"index_dir"`
}

// LLMConfig selects the active provider/model and declares fallbacks.
type LLMConfig struct {
	DefaultProvider string                       `toml:"default_provider"`
	DefaultModel    string                       `toml:"default_model"`
	ReasoningEffort string                       `toml:"reasoning_effort"`
	FallbackChain   []string                     `toml:"fallback_chain"`
	Providers       map[string]LLMProviderConfig `toml:"providers"`
}

// LLMProviderConfig holds per-provider credentials and endpoint overrides.
type LLMProviderConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
	OAuthEnabled bool   `toml:"oauth_enabled"`
}

// CommandsConfig is the §4.2 policy-rule configuration: allow/deny by
// prefix, regex, or glob, consulted after dangerous-command detection.
type CommandsConfig struct {
	AllowPrefix []string `toml:"allow_prefix"`
	DenyPrefix  []string `toml:"deny_prefix"`
	AllowRegex  []string `toml:"allow_regex"`
	DenyRegex   []string `toml:"deny_regex"`
	AllowGlob   []string `toml:"allow_glob"`
	DenyGlob    []string `toml:"deny_glob"`
	CacheSize   int      `toml:"cache_size"`
}

// ToolsConfig controls the tool registry and execution pipeline.
type ToolsConfig struct {
	Execution ToolExecutionConfig `toml:"execution"`
	Approval  ApprovalConfig      `toml:"approval"`
	Fuse      FuseConfig          `toml:"fuse"`
	Timeouts  TimeoutsConfig      `toml:"timeouts"`
}

// ToolExecutionConfig bounds per-turn tool dispatch (§4.8 limits).
type ToolExecutionConfig struct {
	MaxToolCallsPerTurn int           `toml:"max_tool_calls_per_turn"`
	MaxToolWallClock    time.Duration `toml:"max_tool_wall_clock"`
	MaxToolRetries      int           `toml:"max_tool_retries"`
	MaxToolLoops        int           `toml:"max_tool_loops"`
	ToolRepeatLimit     int           `toml:"tool_repeat_limit"`
	Parallelism         int           `toml:"parallelism"`
}

// ApprovalConfig is the tool-level approval policy (distinct from command
// safety) described in SPEC_FULL.md §4.2.
type ApprovalConfig struct {
	Profile         string   `toml:"profile"`
	Allowlist       []string `toml:"allowlist"`
	Denylist        []string `toml:"denylist"`
	SafeBins        []string `toml:"safe_bins"`
	DefaultDecision string   `toml:"default_decision"`
	AskFallback     bool     `toml:"ask_fallback"`
	RequestTTL      time.Duration `toml:"request_ttl"`
}

// FuseConfig tunes §4.6.1 output sanitization clamps.
type FuseConfig struct {
	Entry int `toml:"entry"`
	Depth int `toml:"depth"`
	Bytes int `toml:"bytes"`
	Token int `toml:"token"`
}

// TimeoutsConfig holds the §4.3 timeout ceilings, in seconds; zero disables.
type TimeoutsConfig struct {
	NonPTYSeconds    int `toml:"non_pty_seconds"`
	PTYSeconds       int `toml:"pty_seconds"`
	MCPSeconds       int `toml:"mcp_seconds"`
	StreamingSeconds int `toml:"streaming_seconds"`
	WarningPercent   int `toml:"warning_percent"`
}

// ContextConfig tunes the §4.7 context manager.
type ContextConfig struct {
	WarningThreshold float64 `toml:"warning_threshold"`
	AlertThreshold   float64 `toml:"alert_threshold"`
	CompactThreshold float64 `toml:"compact_threshold"`
	PreserveRecentTurns int  `toml:"preserve_recent_turns"`
	HistoryDir       string  `toml:"history_dir"`
	HistoryRetention int     `toml:"history_retention"`
	DecisionLedgerMax int    `toml:"decision_ledger_max"`
	AutoCompactOnTimeout bool `toml:"auto_compact_on_timeout"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AuditConfig controls the §4.2 permission audit log.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// SessionConfig controls optional sqlite-backed session persistence (§4.9).
type SessionConfig struct {
	Persist  bool   `toml:"persist"`
	DBPath   string `toml:"db_path"`
	EditMode string `toml:"edit_mode"`
}

// A2AConfig configures the `vtcode a2a serve` listener.
type A2AConfig struct {
	ListenAddr string `toml:"listen_addr"`
	JWTSecret  string `toml:"jwt_secret"`
}

// MCPConfig declares the MCP servers the tool registry attaches to at
// session start (§6 "MCP client" collaborator).
type MCPConfig struct {
	Enabled bool               `toml:"enabled"`
	Servers []MCPServerConfig  `toml:"servers"`
}

// MCPServerConfig mirrors internal/mcp.ServerConfig in TOML form.
type MCPServerConfig struct {
	ID        string            `toml:"id"`
	Name      string            `toml:"name"`
	Transport string            `toml:"transport"`
	Command   string            `toml:"command"`
	Args      []string          `toml:"args"`
	Env       map[string]string `toml:"env"`
	WorkDir   string            `toml:"workdir"`
	URL       string            `toml:"url"`
	Headers   map[string]string `toml:"headers"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
	AutoStart bool              `toml:"auto_start"`
}

// Load reads .vtcode/config.toml at path, expands environment variables,
// applies defaults and VTCODE_* overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if cfg.Workspace.IgnoreFile == "" {
		cfg.Workspace.IgnoreFile = ".vtcodegitignore"
	}
	if cfg.Workspace.AgentsFile == "" {
		cfg.Workspace.AgentsFile = "AGENTS.md"
	}
	if cfg.Workspace.IndexDir == "" {
		cfg.Workspace.IndexDir = ".vtcode/index"
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.LLM.ReasoningEffort == "" {
		cfg.LLM.ReasoningEffort = "medium"
	}

	if cfg.Commands.CacheSize == 0 {
		cfg.Commands.CacheSize = 1000
	}

	if cfg.Tools.Execution.MaxToolCallsPerTurn == 0 {
		cfg.Tools.Execution.MaxToolCallsPerTurn = 50
	}
	if cfg.Tools.Execution.MaxToolWallClock == 0 {
		cfg.Tools.Execution.MaxToolWallClock = 10 * time.Minute
	}
	if cfg.Tools.Execution.MaxToolRetries == 0 {
		cfg.Tools.Execution.MaxToolRetries = 3
	}
	if cfg.Tools.Execution.MaxToolLoops == 0 {
		cfg.Tools.Execution.MaxToolLoops = 100
	}
	if cfg.Tools.Execution.ToolRepeatLimit == 0 {
		cfg.Tools.Execution.ToolRepeatLimit = 5
	}
	if cfg.Tools.Execution.Parallelism == 0 {
		cfg.Tools.Execution.Parallelism = 4
	}

	if cfg.Tools.Approval.DefaultDecision == "" {
		cfg.Tools.Approval.DefaultDecision = "allowed"
	}
	if cfg.Tools.Approval.RequestTTL == 0 {
		cfg.Tools.Approval.RequestTTL = 15 * time.Minute
	}

	if cfg.Tools.Fuse.Entry == 0 {
		cfg.Tools.Fuse.Entry = 200
	}
	if cfg.Tools.Fuse.Depth == 0 {
		cfg.Tools.Fuse.Depth = 3
	}
	if cfg.Tools.Fuse.Bytes == 0 {
		cfg.Tools.Fuse.Bytes = 200_000
	}
	if cfg.Tools.Fuse.Token == 0 {
		cfg.Tools.Fuse.Token = 50_000
	}

	if cfg.Tools.Timeouts.NonPTYSeconds == 0 {
		cfg.Tools.Timeouts.NonPTYSeconds = 180
	}
	if cfg.Tools.Timeouts.PTYSeconds == 0 {
		cfg.Tools.Timeouts.PTYSeconds = 300
	}
	if cfg.Tools.Timeouts.MCPSeconds == 0 {
		cfg.Tools.Timeouts.MCPSeconds = 120
	}
	if cfg.Tools.Timeouts.StreamingSeconds == 0 {
		cfg.Tools.Timeouts.StreamingSeconds = 600
	}
	if cfg.Tools.Timeouts.WarningPercent == 0 {
		cfg.Tools.Timeouts.WarningPercent = 80
	}

	if cfg.Context.WarningThreshold == 0 {
		cfg.Context.WarningThreshold = 0.75
	}
	if cfg.Context.AlertThreshold == 0 {
		cfg.Context.AlertThreshold = 0.85
	}
	if cfg.Context.CompactThreshold == 0 {
		cfg.Context.CompactThreshold = 0.90
	}
	if cfg.Context.PreserveRecentTurns == 0 {
		cfg.Context.PreserveRecentTurns = 4
	}
	if cfg.Context.HistoryDir == "" {
		cfg.Context.HistoryDir = ".vtcode/history"
	}
	if cfg.Context.HistoryRetention == 0 {
		cfg.Context.HistoryRetention = 200
	}
	if cfg.Context.DecisionLedgerMax == 0 {
		cfg.Context.DecisionLedgerMax = 50
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Audit.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			home = "."
		}
		cfg.Audit.Dir = filepath.Join(home, ".vtcode", "audit")
	}

	if cfg.Session.DBPath == "" {
		cfg.Session.DBPath = ".vtcode/state.db"
	}
	if cfg.Session.EditMode == "" {
		cfg.Session.EditMode = "edit"
	}
}

// applyEnvOverrides layers VTCODE_* environment variables over the file
// config, applied after defaults and before validation.
func applyEnvOverrides(cfg *Config) {
	if v := envList("VTCODE_COMMANDS_ALLOW_LIST"); v != nil {
		cfg.Commands.AllowPrefix = append(cfg.Commands.AllowPrefix, v...)
	}
	if v := envList("VTCODE_COMMANDS_DENY_LIST"); v != nil {
		cfg.Commands.DenyPrefix = append(cfg.Commands.DenyPrefix, v...)
	}
	if v := envList("VTCODE_COMMANDS_ALLOW_REGEX"); v != nil {
		cfg.Commands.AllowRegex = append(cfg.Commands.AllowRegex, v...)
	}
	if v := envList("VTCODE_COMMANDS_DENY_REGEX"); v != nil {
		cfg.Commands.DenyRegex = append(cfg.Commands.DenyRegex, v...)
	}
	if v := envList("VTCODE_COMMANDS_ALLOW_GLOB"); v != nil {
		cfg.Commands.AllowGlob = append(cfg.Commands.AllowGlob, v...)
	}
	if v := envList("VTCODE_COMMANDS_DENY_GLOB"); v != nil {
		cfg.Commands.DenyGlob = append(cfg.Commands.DenyGlob, v...)
	}

	if v := envInt("VTCODE_FUSE_ENTRY"); v != 0 {
		cfg.Tools.Fuse.Entry = v
	}
	if v := envInt("VTCODE_FUSE_DEPTH"); v != 0 {
		cfg.Tools.Fuse.Depth = v
	}
	if v := envInt("VTCODE_FUSE_TOKEN"); v != 0 {
		cfg.Tools.Fuse.Token = v
	}
	if v := envInt("VTCODE_FUSE_BYTES"); v != 0 {
		cfg.Tools.Fuse.Bytes = v
	}

	for name, provider := range cfg.LLM.Providers {
		envName := strings.ToUpper(name) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
			provider.APIKey = v
		}
		envBase := strings.ToUpper(name) + "_BASE_URL"
		if v := strings.TrimSpace(os.Getenv(envBase)); v != "" {
			provider.BaseURL = v
		}
		cfg.LLM.Providers[name] = provider
	}
}

func envList(name string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(name string) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// ValidationError collects configuration problems found during validate.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.Context.WarningThreshold <= 0 || cfg.Context.WarningThreshold >= 1 {
		issues = append(issues, "context.warning_threshold must be in (0,1)")
	}
	if cfg.Context.AlertThreshold <= cfg.Context.WarningThreshold {
		issues = append(issues, "context.alert_threshold must exceed warning_threshold")
	}
	if cfg.Context.CompactThreshold <= cfg.Context.AlertThreshold {
		issues = append(issues, "context.compact_threshold must exceed alert_threshold")
	}
	if cfg.Context.PreserveRecentTurns < 0 {
		issues = append(issues, "context.preserve_recent_turns must be >= 0")
	}

	for _, ceiling := range []struct {
		name string
		secs int
	}{
		{"tools.timeouts.non_pty_seconds", cfg.Tools.Timeouts.NonPTYSeconds},
		{"tools.timeouts.pty_seconds", cfg.Tools.Timeouts.PTYSeconds},
		{"tools.timeouts.mcp_seconds", cfg.Tools.Timeouts.MCPSeconds},
		{"tools.timeouts.streaming_seconds", cfg.Tools.Timeouts.StreamingSeconds},
	} {
		if ceiling.secs != 0 && ceiling.secs < 15 {
			issues = append(issues, fmt.Sprintf("%s must be 0 (disabled) or >= 15", ceiling.name))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Session.EditMode)) {
	case "edit", "plan":
	default:
		issues = append(issues, "session.edit_mode must be \"edit\" or \"plan\"")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Tools.Approval.DefaultDecision)) {
	case "allowed", "denied", "pending":
	default:
		issues = append(issues, "tools.approval.default_decision must be \"allowed\", \"denied\", or \"pending\"")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
