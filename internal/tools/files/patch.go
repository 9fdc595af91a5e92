package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vtcode-ai/vtcode/internal/agent"
)

// ApplyPatchTool applies the anchor/chunk patch format to workspace files:
// each chunk anchors on either an explicit line number or a single context
// line, then replaces (or inserts after) a declared run of old lines with a
// new one. This is deliberately not a unified diff: anchors tolerate drift
// in the surrounding file far better than line-offset hunks do, at the cost
// of needing the old lines to actually be present to find.
type ApplyPatchTool struct {
	resolver Resolver
}

// NewApplyPatchTool creates an apply_patch tool scoped to the workspace.
func NewApplyPatchTool(cfg Config) *ApplyPatchTool {
	return &ApplyPatchTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *ApplyPatchTool) Name() string {
	return "apply_patch"
}

// Description returns the tool description.
func (t *ApplyPatchTool) Description() string {
	return "Apply anchor/chunk patches to one or more files in the workspace. Each chunk anchors on a line number or a single context line, then replaces or inserts a run of lines."
}

// Schema returns the JSON schema for tool parameters.
func (t *ApplyPatchTool) Schema() json.RawMessage {
	chunkSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"line_hint": map[string]interface{}{
				"type":        "integer",
				"description": "1-based line number to anchor this chunk at, if known.",
			},
			"context": map[string]interface{}{
				"type":        "string",
				"description": "A single line of surrounding context to search for, if line_hint is not known.",
			},
			"old_lines": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Lines to find and replace, starting at the anchor. Empty for a pure insertion.",
			},
			"new_lines": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Lines to put in place of old_lines (or to insert, if old_lines is empty).",
			},
			"end_of_file": map[string]interface{}{
				"type":        "boolean",
				"description": "When true, old_lines must match at the very end of the file.",
			},
		},
		"required": []string{"new_lines"},
	}
	fileSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to patch, relative to the workspace.",
			},
			"chunks": map[string]interface{}{
				"type":  "array",
				"items": chunkSchema,
			},
		},
		"required": []string{"path", "chunks"},
	}
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"files": map[string]interface{}{
				"type":  "array",
				"items": fileSchema,
			},
		},
		"required": []string{"files"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// patchChunk is one anchor/replace instruction within a file patch.
type patchChunk struct {
	LineHint  *int     `json:"line_hint,omitempty"`
	Context   *string  `json:"context,omitempty"`
	OldLines  []string `json:"old_lines"`
	NewLines  []string `json:"new_lines"`
	EndOfFile bool     `json:"end_of_file,omitempty"`
}

// filePatch is the chunk sequence to apply to a single file.
type filePatch struct {
	Path   string       `json:"path"`
	Chunks []patchChunk `json:"chunks"`
}

// replacement is a resolved, non-overlapping edit against the original
// line slice: replace oldLen lines starting at start with newLines.
type replacement struct {
	start    int
	oldLen   int
	newLines []string
}

// lineEnding is the line terminator detected in a file on its first
// newline-terminated line, and preserved on write.
type lineEnding int

const (
	lineEndingLF lineEnding = iota
	lineEndingCRLF
)

func (e lineEnding) separator() string {
	if e == lineEndingCRLF {
		return "\r\n"
	}
	return "\n"
}

// maxPatchFileBytes bounds how large a file this tool will load into
// memory to compute replacements.
const maxPatchFileBytes = 32 * 1024 * 1024

// ContextNotFoundError means a chunk's context line could not be found
// anywhere at or after the current cursor.
type ContextNotFoundError struct {
	Path    string
	Context string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("%s: context line not found: %q", e.Path, e.Context)
}

// SegmentNotFoundError means a chunk's old_lines could not be found at or
// after the resolved anchor.
type SegmentNotFoundError struct {
	Path    string
	Snippet string
}

func (e *SegmentNotFoundError) Error() string {
	return fmt.Sprintf("%s: old lines not found: %s", e.Path, e.Snippet)
}

// FileNotFoundError wraps a missing patch target.
type FileNotFoundError struct{ Path string }

func (e *FileNotFoundError) Error() string { return fmt.Sprintf("%s: file not found", e.Path) }

// PermissionDeniedError wraps an unreadable/unwritable patch target.
type PermissionDeniedError struct{ Path string }

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: permission denied", e.Path)
}

// IsDirectoryError means the patch target is a directory.
type IsDirectoryError struct{ Path string }

func (e *IsDirectoryError) Error() string { return fmt.Sprintf("%s: is a directory", e.Path) }

// FileTooLargeError means the patch target exceeds maxPatchFileBytes.
type FileTooLargeError struct {
	Path string
	Size int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: file too large (%d bytes)", e.Path, e.Size)
}

// EncodingError means the patch target contains invalid UTF-8.
type EncodingError struct{ Path string }

func (e *EncodingError) Error() string { return fmt.Sprintf("%s: invalid UTF-8 encoding", e.Path) }

// Execute applies each file's chunk sequence in turn.
func (t *ApplyPatchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Files []filePatch `json:"files"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if len(input.Files) == 0 {
		return toolError("files is required"), nil
	}

	results := make([]map[string]interface{}, 0, len(input.Files))
	for _, fp := range input.Files {
		resolved, err := t.resolver.Resolve(fp.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		summary, err := applyFilePatch(resolved, fp)
		if err != nil {
			return toolError(err.Error()), nil
		}
		results = append(results, map[string]interface{}{
			"path":          fp.Path,
			"chunks":        len(fp.Chunks),
			"lines_added":   summary.added,
			"lines_removed": summary.removed,
		})
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"applied": results,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

type patchSummary struct {
	added   int
	removed int
}

// applyFilePatch loads path, resolves every chunk's replacement, and
// writes the patched content back atomically.
func applyFilePatch(path string, fp filePatch) (patchSummary, error) {
	original, hadTrailingNewline, ending, err := loadFileLines(path)
	if err != nil {
		return patchSummary{}, err
	}

	replacements, err := computeReplacements(original, fp.Chunks, fp.Path)
	if err != nil {
		return patchSummary{}, err
	}

	content := buildPatchedContent(original, replacements, hadTrailingNewline, ending)

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := atomicWriteFile(path, []byte(content), perm); err != nil {
		return patchSummary{}, fmt.Errorf("write file: %w", err)
	}

	var summary patchSummary
	for _, r := range replacements {
		summary.removed += r.oldLen
		summary.added += len(r.newLines)
	}
	return summary, nil
}

// loadFileLines reads path line by line, recording whether the file ended
// with a trailing newline and which line ending its first terminated line
// used, stripping terminators from each returned line.
func loadFileLines(path string) ([]string, bool, lineEnding, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, lineEndingLF, &FileNotFoundError{Path: path}
		}
		if os.IsPermission(err) {
			return nil, false, lineEndingLF, &PermissionDeniedError{Path: path}
		}
		return nil, false, lineEndingLF, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, lineEndingLF, err
	}
	if info.IsDir() {
		return nil, false, lineEndingLF, &IsDirectoryError{Path: path}
	}
	if info.Size() > maxPatchFileBytes {
		return nil, false, lineEndingLF, &FileTooLargeError{Path: path, Size: info.Size()}
	}

	reader := bufio.NewReader(f)
	var lines []string
	ending := lineEndingLF
	detectedEnding := false
	hadTrailingNewline := false
	for {
		raw, readErr := reader.ReadString('\n')
		if raw == "" {
			if readErr != nil {
				break
			}
			continue
		}
		if strings.HasSuffix(raw, "\n") {
			hadTrailingNewline = true
			if !detectedEnding {
				if strings.HasSuffix(raw, "\r\n") {
					ending = lineEndingCRLF
				}
				detectedEnding = true
			}
			raw = strings.TrimSuffix(raw, "\n")
			raw = strings.TrimSuffix(raw, "\r")
		} else {
			hadTrailingNewline = false
		}
		if !utf8.ValidString(raw) {
			return nil, false, lineEndingLF, &EncodingError{Path: path}
		}
		lines = append(lines, raw)
		if readErr != nil {
			if readErr != io.EOF {
				return nil, false, lineEndingLF, readErr
			}
			break
		}
	}
	return lines, hadTrailingNewline, ending, nil
}

// computeReplacements resolves each chunk's anchor against original and
// returns the non-overlapping, start-order replacements to apply.
func computeReplacements(original []string, chunks []patchChunk, path string) ([]replacement, error) {
	var replacements []replacement
	lineIndex := 0

	for _, ch := range chunks {
		switch {
		case ch.LineHint != nil:
			lineIndex = *ch.LineHint - 1
			if lineIndex < 0 {
				lineIndex = 0
			}
		case ch.Context != nil:
			idx, found := seekLines(original, []string{*ch.Context}, lineIndex, false)
			if !found {
				return nil, &ContextNotFoundError{Path: path, Context: *ch.Context}
			}
			lineIndex = idx + 1
		}

		oldSeg := ch.OldLines
		newSeg := ch.NewLines

		if len(oldSeg) == 0 {
			insertionIdx := len(original)
			if ch.LineHint != nil || ch.Context != nil {
				if lineIndex < insertionIdx {
					insertionIdx = lineIndex
				}
			}
			lineIndex = insertionIdx + len(newSeg)
			replacements = append(replacements, replacement{start: insertionIdx, oldLen: 0, newLines: newSeg})
			continue
		}

		start, found := seekLines(original, oldSeg, lineIndex, ch.EndOfFile)
		if !found && oldSeg[len(oldSeg)-1] == "" {
			trimmedOld := oldSeg[:len(oldSeg)-1]
			trimmedNew := newSeg
			if len(newSeg) > 0 && newSeg[len(newSeg)-1] == "" {
				trimmedNew = newSeg[:len(newSeg)-1]
			}
			if start, found = seekLines(original, trimmedOld, lineIndex, ch.EndOfFile); found {
				oldSeg = trimmedOld
				newSeg = trimmedNew
			}
		}
		if !found {
			snippet := strings.Join(oldSeg, "\n")
			if snippet == "" {
				snippet = "<empty>"
			}
			return nil, &SegmentNotFoundError{Path: path, Snippet: snippet}
		}
		lineIndex = start + len(oldSeg)
		replacements = append(replacements, replacement{start: start, oldLen: len(oldSeg), newLines: newSeg})
	}

	sort.SliceStable(replacements, func(i, j int) bool { return replacements[i].start < replacements[j].start })
	return replacements, nil
}

// seekLines finds pattern within lines at or after from. When atEOF is
// set, the only acceptable match is one that ends exactly at the end of
// lines.
func seekLines(lines []string, pattern []string, from int, atEOF bool) (int, bool) {
	if len(pattern) == 0 {
		return from, true
	}
	if atEOF {
		idx := len(lines) - len(pattern)
		if idx < from || idx < 0 {
			return 0, false
		}
		if linesEqual(lines[idx:idx+len(pattern)], pattern) {
			return idx, true
		}
		return 0, false
	}
	for idx := from; idx+len(pattern) <= len(lines); idx++ {
		if linesEqual(lines[idx:idx+len(pattern)], pattern) {
			return idx, true
		}
	}
	return 0, false
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildPatchedContent renders original with replacements applied, joining
// lines with ending's separator and restoring a trailing terminator if the
// original file had one.
func buildPatchedContent(original []string, replacements []replacement, hadTrailingNewline bool, ending lineEnding) string {
	sep := ending.separator()
	var sb strings.Builder
	first := true
	write := func(lines []string) {
		for _, l := range lines {
			if !first {
				sb.WriteString(sep)
			}
			sb.WriteString(l)
			first = false
		}
	}

	currentIdx := 0
	for _, r := range replacements {
		write(original[currentIdx:r.start])
		write(r.newLines)
		currentIdx = r.start + r.oldLen
	}
	write(original[currentIdx:])

	if hadTrailingNewline && sb.Len() > 0 {
		sb.WriteString(sep)
	}
	return sb.String()
}

// atomicWriteFile writes content to path via a temp file in the same
// directory, fsynced and renamed into place, so a crash mid-write never
// leaves a truncated file at path.
func atomicWriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".patch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	removeTmp := true
	defer func() {
		if removeTmp {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	removeTmp = false
	return nil
}
