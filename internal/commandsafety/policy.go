package commandsafety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/vtcode-ai/vtcode/internal/config"
)

// policy is a compiled form of config.CommandsConfig: prefixes kept as-is,
// regex/glob patterns compiled once at construction so evaluation never
// pays compilation cost per command.
type policy struct {
	allowPrefix []string
	denyPrefix  []string
	allowRegex  []*regexp.Regexp
	denyRegex   []*regexp.Regexp
	allowGlob   []glob.Glob
	denyGlob    []glob.Glob
	hasAllow    bool
}

func compilePolicy(cfg config.CommandsConfig) (*policy, error) {
	p := &policy{
		allowPrefix: cfg.AllowPrefix,
		denyPrefix:  cfg.DenyPrefix,
	}
	for _, pat := range cfg.AllowRegex {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile allow_regex %q: %w", pat, err)
		}
		p.allowRegex = append(p.allowRegex, re)
	}
	for _, pat := range cfg.DenyRegex {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile deny_regex %q: %w", pat, err)
		}
		p.denyRegex = append(p.denyRegex, re)
	}
	for _, pat := range cfg.AllowGlob {
		g, err := glob.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile allow_glob %q: %w", pat, err)
		}
		p.allowGlob = append(p.allowGlob, g)
	}
	for _, pat := range cfg.DenyGlob {
		g, err := glob.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile deny_glob %q: %w", pat, err)
		}
		p.denyGlob = append(p.denyGlob, g)
	}
	p.hasAllow = len(p.allowPrefix) > 0 || len(p.allowRegex) > 0 || len(p.allowGlob) > 0
	return p, nil
}

// ruleVerdict is the result of matching a command against the configured
// allow/deny rules, before dangerous-command detection or caching.
type ruleVerdict int

const (
	ruleUnmatched ruleVerdict = iota
	ruleAllowed
	ruleDenied
)

// evaluate applies deny-then-allow precedence: a deny match always wins
// regardless of any allow match on the same command. When no allow rule is
// configured at all, an unmatched command defaults to allowed (the policy
// is opt-out); once any allow rule exists, an unmatched command requires
// approval rather than running silently.
func (p *policy) evaluate(command string) (ruleVerdict, string) {
	for i, pat := range p.denyPrefix {
		if strings.HasPrefix(command, pat) {
			return ruleDenied, fmt.Sprintf("matches deny_prefix[%d] %q", i, pat)
		}
	}
	for i, re := range p.denyRegex {
		if re.MatchString(command) {
			return ruleDenied, fmt.Sprintf("matches deny_regex[%d] %q", i, re.String())
		}
	}
	for i, g := range p.denyGlob {
		if g.Match(command) {
			return ruleDenied, fmt.Sprintf("matches deny_glob[%d]", i)
		}
	}

	for i, pat := range p.allowPrefix {
		if strings.HasPrefix(command, pat) {
			return ruleAllowed, fmt.Sprintf("matches allow_prefix[%d] %q", i, pat)
		}
	}
	for i, re := range p.allowRegex {
		if re.MatchString(command) {
			return ruleAllowed, fmt.Sprintf("matches allow_regex[%d] %q", i, re.String())
		}
	}
	for i, g := range p.allowGlob {
		if g.Match(command) {
			return ruleAllowed, fmt.Sprintf("matches allow_glob[%d]", i)
		}
	}

	if !p.hasAllow {
		return ruleAllowed, "no allow rules configured, default allow"
	}
	return ruleUnmatched, "no rule matched; allow rules are configured so this command needs approval"
}
