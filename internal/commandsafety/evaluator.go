// Package commandsafety implements the command-safety decision procedure:
// dangerous-command hard-blocking, allow/deny policy rules, and a
// decision cache, sitting in front of every shell command an exec tool
// runs. It is distinct from agent.ApprovalPolicy, which governs whether a
// tool invocation itself needs human approval independent of what command,
// if any, that tool happens to run.
package commandsafety

import (
	"strings"

	"github.com/vtcode-ai/vtcode/internal/audit"
	"github.com/vtcode-ai/vtcode/internal/config"
	execsafety "github.com/vtcode-ai/vtcode/internal/exec"
)

// Decision is the terminal or pending verdict an Evaluator returns for a
// command.
type Decision string

const (
	// DecisionAllow means the command may run as-is.
	DecisionAllow Decision = "allow"
	// DecisionNeedsApproval means the command requires a human (or an
	// AskFallback-equipped caller) to decide before it runs.
	DecisionNeedsApproval Decision = "needs_approval"
	// DecisionForbidden means the command must never run.
	DecisionForbidden Decision = "forbidden"
)

// Outcome is the full result of evaluating a command.
type Outcome struct {
	Decision Decision
	Reason   string

	// BypassSandbox, when set on an Allow outcome, signals that the
	// command was explicitly allow-listed and may skip any sandboxing the
	// caller would otherwise apply.
	BypassSandbox bool

	// ProposedAmendment suggests a commands.toml rule the operator could
	// add to resolve a NeedsApproval verdict the same way next time.
	ProposedAmendment string
}

// Evaluator implements the §4.2 command-safety decision procedure:
// dangerous hard-block, then cache lookup, then policy rules, with every
// terminal decision written to the permission audit log.
type Evaluator struct {
	policy *policy
	cache  *decisionCache
	log    *audit.PermissionLogger
}

// NewEvaluator compiles cfg's allow/deny rules and wires an optional
// permission log; log may be nil to disable audit logging (e.g. in tests).
func NewEvaluator(cfg config.CommandsConfig, log *audit.PermissionLogger) (*Evaluator, error) {
	p, err := compilePolicy(cfg)
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		policy: p,
		cache:  newDecisionCache(cfg.CacheSize),
		log:    log,
	}, nil
}

// Evaluate decides whether command may run. requestedBy identifies the
// caller (agent id or session id) for the audit trail.
func (e *Evaluator) Evaluate(command string, requestedBy string) Outcome {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return Outcome{Decision: DecisionForbidden, Reason: "empty command"}
	}

	argv := tokenizeCommand(trimmed)
	if len(argv) > 0 {
		if _, err := execsafety.SanitizeExecutableValue(argv[0]); err != nil {
			outcome := Outcome{Decision: DecisionForbidden, Reason: "unsafe executable: " + err.Error()}
			e.audit(trimmed, requestedBy, outcome)
			return outcome
		}
	}

	if dangerousHardBlock(argv) {
		outcome := Outcome{Decision: DecisionForbidden, Reason: "command matches a hard-blocked destructive pattern"}
		e.audit(trimmed, requestedBy, outcome)
		return outcome
	}

	if cached, ok := e.cache.get(trimmed); ok {
		decision := DecisionForbidden
		if cached.allowed {
			decision = DecisionAllow
		}
		outcome := Outcome{Decision: decision, Reason: "cached: " + cached.reason}
		e.audit(trimmed, requestedBy, outcome)
		return outcome
	}

	verdict, reason := e.policy.evaluate(trimmed)
	var outcome Outcome
	switch verdict {
	case ruleAllowed:
		outcome = Outcome{Decision: DecisionAllow, Reason: reason, BypassSandbox: e.policy.hasAllow}
		e.cache.put(trimmed, true, reason)
	case ruleDenied:
		outcome = Outcome{Decision: DecisionForbidden, Reason: reason}
		e.cache.put(trimmed, false, reason)
	default:
		outcome = Outcome{
			Decision:          DecisionNeedsApproval,
			Reason:            reason,
			ProposedAmendment: proposedAmendment(argv),
		}
		// Pending decisions are never cached: the whole point of asking is
		// that the answer can change the outcome on the next identical
		// command.
	}
	e.audit(trimmed, requestedBy, outcome)
	return outcome
}

// proposedAmendment suggests adding the command's leading token (its
// executable name) as an allow_prefix rule, the smallest amendment that
// would resolve this specific NeedsApproval verdict.
func proposedAmendment(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return "allow_prefix = [\"" + argv[0] + "\"]"
}

func (e *Evaluator) audit(command, requestedBy string, outcome Outcome) {
	if e.log == nil {
		return
	}
	e.log.LogPermission(audit.PermissionEntry{
		Subject:     command,
		EventType:   audit.EventTypeCommandExecution,
		Decision:    string(outcome.Decision),
		Reason:      outcome.Reason,
		RequestedBy: requestedBy,
	})
}
