package script

import "strings"

// EscapeString escapes text for embedding inside a script string literal.
//
// The engine's literal rules: backslash introduces an escape, double
// quote terminates the literal. Raw newlines, carriage returns, and tabs
// inside a literal are rewritten to their escape forms; other control
// characters are dropped rather than passed through, because the engine's
// parser treats several of them as statement separators.
//
// Every piece of caller-provided text MUST pass through here (or Quote)
// before interpolation. This is the command-injection boundary.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Quote escapes s and wraps it in double quotes, yielding a complete
// script string literal.
func Quote(s string) string {
	return `"` + EscapeString(s) + `"`
}
