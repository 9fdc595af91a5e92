package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/vtcode-ai/vtcode/internal/config"
	"github.com/vtcode-ai/vtcode/internal/workspace"
)

func buildInitCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold .vtcode/ and AGENTS.md in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot := flags.workspace
			configPath := filepath.Join(workspaceRoot, ".vtcode", "config.toml")

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("usage: load config: %w", err)
			}
			cfg.Workspace.Root = workspaceRoot

			files := workspace.BootstrapFilesForConfig(cfg)
			result, err := workspace.EnsureWorkspaceFiles(workspaceRoot, files, overwrite)
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := writeDefaultConfig(configPath, cfg); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				result.Created = append(result.Created, configPath)
			} else {
				result.Skipped = append(result.Skipped, configPath)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace ready: %s\n", workspaceRoot)
			if len(result.Created) > 0 {
				fmt.Fprintln(out, "Created:")
				for _, path := range result.Created {
					fmt.Fprintf(out, "  - %s\n", path)
				}
			}
			if len(result.Skipped) > 0 {
				fmt.Fprintln(out, "Skipped (already exists):")
				for _, path := range result.Skipped {
					fmt.Fprintf(out, "  - %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing bootstrap files")
	return cmd
}

// writeDefaultConfig marshals the defaults config.Load already applied back
// to disk so the workspace carries an explicit, editable config.toml.
func writeDefaultConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
