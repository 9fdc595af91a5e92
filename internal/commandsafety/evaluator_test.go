package commandsafety

import (
	"testing"

	"github.com/vtcode-ai/vtcode/internal/config"
)

func mustEvaluator(t *testing.T, cfg config.CommandsConfig) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(cfg, nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func TestEvaluate_DangerousHardBlock(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{})

	cases := []string{
		"sudo rm -rf /",
		"rm -rf /",
		"git reset --hard",
		"mkfs.ext4 /dev/sda1",
		"shutdown -h now",
		"/usr/bin/git reset --hard",
	}
	for _, cmd := range cases {
		out := e.Evaluate(cmd, "test")
		if out.Decision != DecisionForbidden {
			t.Errorf("Evaluate(%q) = %v, want forbidden", cmd, out.Decision)
		}
	}
}

func TestEvaluate_SafeGitCommandsNotBlocked(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{})

	cases := []string{"git status", "git log", "rm -f"}
	for _, cmd := range cases {
		out := e.Evaluate(cmd, "test")
		if out.Decision == DecisionForbidden {
			t.Errorf("Evaluate(%q) = forbidden, want not forbidden", cmd)
		}
	}
}

func TestEvaluate_DefaultAllowWithoutRules(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{})
	out := e.Evaluate("ls -la", "test")
	if out.Decision != DecisionAllow {
		t.Fatalf("Decision = %v, want allow", out.Decision)
	}
}

func TestEvaluate_UnmatchedNeedsApprovalWhenAllowRulesConfigured(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{AllowPrefix: []string{"go test"}})
	out := e.Evaluate("curl http://example.com", "test")
	if out.Decision != DecisionNeedsApproval {
		t.Fatalf("Decision = %v, want needs_approval", out.Decision)
	}
	if out.ProposedAmendment == "" {
		t.Error("expected a proposed amendment")
	}
}

func TestEvaluate_DenyPrecedesAllow(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{
		AllowPrefix: []string{"go "},
		DenyPrefix:  []string{"go test"},
	})
	out := e.Evaluate("go test ./...", "test")
	if out.Decision != DecisionForbidden {
		t.Fatalf("Decision = %v, want forbidden (deny precedence)", out.Decision)
	}
}

func TestEvaluate_DenyGlob(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{DenyGlob: []string{"*rm -rf*"}})
	out := e.Evaluate("custom-script rm -rf /data", "test")
	if out.Decision != DecisionForbidden {
		t.Fatalf("Decision = %v, want forbidden", out.Decision)
	}
}

func TestEvaluate_CachesTerminalDecisions(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{DenyPrefix: []string{"curl"}})
	first := e.Evaluate("curl http://evil", "test")
	if first.Decision != DecisionForbidden {
		t.Fatalf("first decision = %v", first.Decision)
	}
	if e.cache.size() != 1 {
		t.Fatalf("cache size = %d, want 1", e.cache.size())
	}
	second := e.Evaluate("curl http://evil", "test")
	if second.Decision != DecisionForbidden {
		t.Fatalf("second decision = %v", second.Decision)
	}
}

func TestEvaluate_PendingDecisionsNotCached(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{AllowPrefix: []string{"go test"}})
	e.Evaluate("curl http://example.com", "test")
	if e.cache.size() != 0 {
		t.Fatalf("cache size = %d, want 0 for pending decisions", e.cache.size())
	}
}

func TestEvaluate_EmptyCommandForbidden(t *testing.T) {
	e := mustEvaluator(t, config.CommandsConfig{})
	out := e.Evaluate("   ", "test")
	if out.Decision != DecisionForbidden {
		t.Fatalf("Decision = %v, want forbidden for empty command", out.Decision)
	}
}
