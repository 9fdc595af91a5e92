package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vtcode-ai/vtcode/internal/workspace"
)

func TestSummarizeWorkspaceShallow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}

	ctx, err := workspace.Load(workspace.LoaderConfig{Root: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	summary, err := summarizeWorkspace(ctx, "shallow")
	if err != nil {
		t.Fatalf("summarizeWorkspace: %v", err)
	}
	if summary.Files != 1 || summary.Directories != 1 {
		t.Fatalf("files=%d dirs=%d, want 1/1", summary.Files, summary.Directories)
	}
}

func TestSummarizeWorkspaceDeepExcludesIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".vtcodegitignore"), []byte("ignored.txt\n"), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("write ignored.txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kept.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write kept.txt: %v", err)
	}

	ctx, err := workspace.Load(workspace.LoaderConfig{Root: dir, IgnoreFile: ".vtcodegitignore"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	summary, err := summarizeWorkspace(ctx, "deep")
	if err != nil {
		t.Fatalf("summarizeWorkspace: %v", err)
	}
	if summary.Files != 2 {
		t.Fatalf("files = %d, want 2 (kept.txt + .vtcodegitignore)", summary.Files)
	}
}
