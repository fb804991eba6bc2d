// Package shellquote provides POSIX shell escaping and Erlang atom-name
// validation — the only sanitisation applied to caller-supplied names
// before they are embedded into generated remote evaluation code.
package shellquote

import (
	"regexp"
	"strings"
)

// atomNameRegex is the restricted character class an Erlang atom name
// supplied by a caller must match before it is embedded in generated code.
var atomNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:]*$`)

// Quote returns a single POSIX single-quoted shell word that, once
// passed through `/bin/sh -c`, reproduces s byte-for-byte.
//
// Rule: wrap with ', replace every internal ' with '\'' — no other
// transformation.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ValidAtomName reports whether name is safe to embed as an Erlang atom
// in generated remote code.
func ValidAtomName(name string) bool {
	return atomNameRegex.MatchString(name)
}
