// Package envexpr expands ${env.NAME} references in configuration documents.
package envexpr

import (
	"os"
	"strings"
)

const (
	prefix = "${env."
	suffix = '}'
)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (string, bool)

// Expand replaces every ${env.NAME} with lookup(NAME). Unknown names expand
// to an empty string. A reference with an invalid name or without a closing
// brace is left as written.
func Expand(value string, lookup LookupFunc) string {
	if !strings.Contains(value, prefix) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for {
		start := strings.Index(value, prefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(prefix):]
		end := strings.IndexByte(rest, suffix)
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		name := rest[:end]
		if !validName(name) {
			b.WriteString(prefix)
			value = rest
			continue
		}
		if resolved, ok := lookup(name); ok {
			b.WriteString(resolved)
		}
		value = rest[end+1:]
	}
}

// ExpandEnv expands references from the process environment.
func ExpandEnv(value string) string {
	return Expand(value, os.LookupEnv)
}

func validName(name string) bool {
	for _, r := range name {
		switch {
		case r == '_', r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
