package commandsafety

import (
	"path/filepath"
	"strings"
)

// dangerousHardBlock reports whether argv, a parsed command line, matches
// one of the fixed set of destructive invocations that no policy rule can
// override: filesystem wipes, disk formatting, fork bombs, and the history
// rewrites under git. Ported from vtcode-core's command_safety module,
// which walks shells (bash -c, sh -c, zsh -lc/-ilc) to inspect the command
// they actually run rather than just the literal "bash" they were called
// with.
func dangerousHardBlock(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	base := extractCommandName(argv[0])

	switch base {
	case "bash", "sh", "zsh":
		if len(argv) >= 3 {
			switch argv[1] {
			case "-c", "-lc", "-ilc":
				return dangerousHardBlock(tokenizeCommand(argv[2]))
			}
		}
	}
	return commandMightBeDangerous(argv)
}

// commandMightBeDangerous is the direct port of
// is_dangerous_to_call_with_exec: a denylist of command+argument shapes that
// are almost never intended by an agent and should never be reachable via
// an allow rule.
func commandMightBeDangerous(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	base := extractCommandName(argv[0])

	switch base {
	case "git":
		if len(argv) >= 2 {
			switch argv[1] {
			case "reset", "rm", "clean":
				return true
			}
		}
	case "rm":
		if len(argv) >= 2 {
			switch argv[1] {
			case "-f", "-rf", "-fr", "-r":
				return true
			}
		}
	case "mkfs", "dd", "shutdown", "reboot", "init":
		return true
	case "sudo":
		return commandMightBeDangerous(argv[1:])
	}

	if strings.HasSuffix(base, ":") && len(argv) >= 2 && argv[1] == "(){:|:&};:" {
		// fork bomb disguised as a shell function definition
		return true
	}
	return false
}

// extractCommandName takes the basename of argv[0] the way a shell resolves
// it off PATH, so "/usr/bin/git" and "git" are treated identically.
func extractCommandName(arg0 string) string {
	return filepath.Base(strings.TrimSpace(arg0))
}

// tokenizeCommand splits a shell command line (or a `bash -c "..."` script
// body) into argv-like words using simple whitespace/quote splitting. It
// does not aim to be a full shell parser; it only needs to recognize the
// handful of dangerous command shapes above, and falls back to treating
// the whole script as one opaque token (which commandMightBeDangerous then
// ignores) on anything it can't confidently split.
func tokenizeCommand(script string) []string {
	var words []string
	var current strings.Builder
	var quote rune
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}
