package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/vtcode-ai/vtcode/internal/config"
)

// Context holds workspace-relative data loaded at session start.
type Context struct {
	Root          string
	AgentsContent string
	IgnorePatterns []IgnorePattern
}

// IgnorePattern is a single line from .vtcodegitignore or .gitignore.
// Negated patterns (leading "!") re-include a path excluded by an earlier
// pattern, layering exactly the way .vtcodegitignore composes with
// .gitignore per SPEC_FULL.md §4.4.
type IgnorePattern struct {
	Pattern string
	Negate  bool
}

// LoaderConfig configures the workspace loader.
type LoaderConfig struct {
	Root       string
	AgentsFile string
	IgnoreFile string
}

// LoaderConfigFromConfig derives a LoaderConfig from the process config.
func LoaderConfigFromConfig(cfg *config.Config) LoaderConfig {
	lc := LoaderConfig{AgentsFile: "AGENTS.md", IgnoreFile: ".vtcodegitignore"}
	if cfg == nil {
		return lc
	}
	if cfg.Workspace.Root != "" {
		lc.Root = cfg.Workspace.Root
	}
	if cfg.Workspace.AgentsFile != "" {
		lc.AgentsFile = cfg.Workspace.AgentsFile
	}
	if cfg.Workspace.IgnoreFile != "" {
		lc.IgnoreFile = cfg.Workspace.IgnoreFile
	}
	return lc
}

// Load reads AGENTS.md and the combined .gitignore/.vtcodegitignore pattern
// list. Missing files are not an error.
func Load(cfg LoaderConfig) (*Context, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	agentsFile := cfg.AgentsFile
	if agentsFile == "" {
		agentsFile = "AGENTS.md"
	}
	ignoreFile := cfg.IgnoreFile
	if ignoreFile == "" {
		ignoreFile = ".vtcodegitignore"
	}

	ctx := &Context{Root: root}

	agentsContent, err := readOptionalFile(filepath.Join(root, agentsFile))
	if err != nil {
		return nil, err
	}
	ctx.AgentsContent = agentsContent

	patterns, err := readIgnorePatterns(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil, err
	}
	extra, err := readIgnorePatterns(filepath.Join(root, ignoreFile))
	if err != nil {
		return nil, err
	}
	ctx.IgnorePatterns = append(patterns, extra...)

	return ctx, nil
}

func readIgnorePatterns(path string) ([]IgnorePattern, error) {
	content, err := readOptionalFile(path)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	var patterns []IgnorePattern
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negate := strings.HasPrefix(line, "!")
		if negate {
			line = strings.TrimPrefix(line, "!")
		}
		patterns = append(patterns, IgnorePattern{Pattern: line, Negate: negate})
	}
	return patterns, nil
}

func readOptionalFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Excluded reports whether relPath (slash-separated, workspace-relative)
// matches the loaded ignore patterns, applying later patterns last so a
// trailing "!pattern" can re-include an earlier exclusion.
func (c *Context) Excluded(relPath string) bool {
	if c == nil {
		return false
	}
	excluded := false
	for _, p := range c.IgnorePatterns {
		if matched, _ := filepath.Match(p.Pattern, relPath); matched {
			excluded = !p.Negate
			continue
		}
		base := filepath.Base(relPath)
		if matched, _ := filepath.Match(strings.TrimSuffix(p.Pattern, "/"), base); matched {
			excluded = !p.Negate
		}
	}
	return excluded
}
