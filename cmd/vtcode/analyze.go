package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vtcode-ai/vtcode/internal/workspace"
)

// workspaceSummary is the analyze report shape, serialized as-is for the
// json format.
type workspaceSummary struct {
	Root        string   `json:"root"`
	AgentsFile  bool     `json:"agents_file_present"`
	Directories int      `json:"directories"`
	Files       int      `json:"files"`
	TotalBytes  int64    `json:"total_bytes"`
	TopLevel    []string `json:"top_level,omitempty"`
}

func buildAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <depth> <format>",
		Short: "Summarize the workspace",
		Long:  "Walks the workspace and reports file/directory counts, honoring .vtcodegitignore exclusions. depth is shallow or deep; format is text or json.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, format := args[0], args[1]
			if depth != "shallow" && depth != "deep" {
				return fmt.Errorf("usage: depth must be shallow or deep, got %q", depth)
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("usage: format must be text or json, got %q", format)
			}

			workspaceRoot := flags.workspace
			cfg, err := loadConfig(workspaceRoot)
			if err != nil {
				return fmt.Errorf("usage: load config: %w", err)
			}

			ctx, err := workspace.Load(workspace.LoaderConfigFromConfig(cfg))
			if err != nil {
				return fmt.Errorf("load workspace: %w", err)
			}

			summary, err := summarizeWorkspace(ctx, depth)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeTextSummary(out, summary)
		},
	}
	return cmd
}

func summarizeWorkspace(ctx *workspace.Context, depth string) (*workspaceSummary, error) {
	summary := &workspaceSummary{Root: ctx.Root, AgentsFile: ctx.AgentsContent != ""}

	if depth == "shallow" {
		entries, err := os.ReadDir(ctx.Root)
		if err != nil {
			return nil, fmt.Errorf("read workspace root: %w", err)
		}
		for _, entry := range entries {
			rel := entry.Name()
			if ctx.Excluded(rel) {
				continue
			}
			summary.TopLevel = append(summary.TopLevel, rel)
			if entry.IsDir() {
				summary.Directories++
			} else {
				summary.Files++
				if info, err := entry.Info(); err == nil {
					summary.TotalBytes += info.Size()
				}
			}
		}
		return summary, nil
	}

	err := filepath.WalkDir(ctx.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(ctx.Root, path)
		if relErr != nil {
			rel = path
		}
		if rel == "." {
			return nil
		}
		if ctx.Excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			summary.Directories++
			return nil
		}
		summary.Files++
		if info, infoErr := d.Info(); infoErr == nil {
			summary.TotalBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}
	return summary, nil
}

func writeTextSummary(out io.Writer, s *workspaceSummary) error {
	_, err := fmt.Fprintf(out, "workspace: %s\nAGENTS.md: %v\ndirectories: %d\nfiles: %d\ntotal bytes: %d\n",
		s.Root, s.AgentsFile, s.Directories, s.Files, s.TotalBytes)
	if err != nil {
		return err
	}
	if len(s.TopLevel) > 0 {
		if _, err := fmt.Fprintln(out, "top level:"); err != nil {
			return err
		}
		for _, entry := range s.TopLevel {
			if _, err := fmt.Fprintf(out, "  - %s\n", entry); err != nil {
				return err
			}
		}
	}
	return nil
}
