package utils

import (
	"strings"
)

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SafeToken replaces characters that do not belong in ids, file names or
// NATS subjects.
func SafeToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\\", "_", "\t", "_", ":", "_", "#", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
