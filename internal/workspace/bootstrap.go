// Package workspace scaffolds and loads the workspace-relative files the
// agent reads at session start: AGENTS.md instructions, .vtcode/config.toml,
// and the .vtcodegitignore exclusion filter.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vtcode-ai/vtcode/internal/config"
)

// BootstrapFile is a file to seed in a freshly initialized workspace.
type BootstrapFile struct {
	Name    string
	Content string
}

// BootstrapResult captures which files `vtcode init` created or left alone.
type BootstrapResult struct {
	Created []string
	Skipped []string
}

// DefaultBootstrapFiles returns the file set written by `vtcode init`.
func DefaultBootstrapFiles() []BootstrapFile {
	return []BootstrapFile{
		{
			Name: "AGENTS.md",
			Content: "# AGENTS.md\n\n" +
				"Instructions for the coding agent operating in this workspace.\n\n" +
				"## Safety\n" +
				"- Do not exfiltrate secrets or credentials.\n" +
				"- Confirm before destructive git or filesystem operations.\n\n" +
				"## Conventions\n" +
				"- Run the project's existing test command before declaring work done.\n" +
				"- Prefer small, reviewable diffs.\n",
		},
		{
			Name: ".vtcode/config.toml",
			Content: "[workspace]\n" +
				"root = \".\"\n\n" +
				"[llm]\n" +
				"default_provider = \"anthropic\"\n" +
				"default_model = \"claude-opus-4\"\n\n" +
				"[tools.approval]\n" +
				"profile = \"coding\"\n\n" +
				"[context]\n" +
				"preserve_recent_turns = 4\n",
		},
		{
			Name: ".vtcodegitignore",
			Content: "# Additional exclusions layered on top of .gitignore.\n" +
				"# Prefix a pattern with ! to re-include a gitignored path.\n" +
				"node_modules/\n" +
				"*.lock\n",
		},
	}
}

// BootstrapFilesForConfig maps workspace config overrides onto the default
// bootstrap file set (e.g. a renamed AGENTS.md).
func BootstrapFilesForConfig(cfg *config.Config) []BootstrapFile {
	defaults := DefaultBootstrapFiles()
	if cfg == nil || cfg.Workspace.AgentsFile == "" || cfg.Workspace.AgentsFile == "AGENTS.md" {
		return defaults
	}
	files := make([]BootstrapFile, 0, len(defaults))
	for _, entry := range defaults {
		name := entry.Name
		if name == "AGENTS.md" {
			name = cfg.Workspace.AgentsFile
		}
		files = append(files, BootstrapFile{Name: name, Content: entry.Content})
	}
	return files
}

// EnsureWorkspaceFiles creates missing files under root, skipping any that
// already exist unless overwrite is set.
func EnsureWorkspaceFiles(root string, files []BootstrapFile, overwrite bool) (BootstrapResult, error) {
	result := BootstrapResult{}
	base := strings.TrimSpace(root)
	if base == "" {
		base = "."
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return result, fmt.Errorf("create workspace dir: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSpace(file.Name)
		if name == "" {
			continue
		}
		path := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return result, fmt.Errorf("create dir for %s: %w", path, err)
		}
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				result.Skipped = append(result.Skipped, path)
				continue
			} else if !os.IsNotExist(err) {
				return result, fmt.Errorf("stat %s: %w", path, err)
			}
		}
		if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
			return result, fmt.Errorf("write %s: %w", path, err)
		}
		result.Created = append(result.Created, path)
	}

	return result, nil
}
