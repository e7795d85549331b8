// Package executor provides the sandboxed execution capability for
// generated analysis code: fenced-block extraction, static validation
// against the profiled schema and a safety policy, and a yaegi-based
// interpreter engine with a restricted symbol surface.
package executor

import (
	"regexp"
	"strings"
)

// The newline after the opening fence is optional so a one-line fence is
// still extracted rather than falling through as an empty block.
var fencedBlock = regexp.MustCompile("(?s)```(?:go\\b)?\\s*(.*?)```")

// ExtractCode pulls the first fenced code block out of a raw model reply.
// Returns "" when the reply contains no code block.
func ExtractCode(raw string) string {
	m := fencedBlock.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// HasCodeBlock reports whether a reply contains any fenced code block.
// Replies without one are treated as out-of-scope answers.
func HasCodeBlock(raw string) bool {
	return strings.Contains(raw, "```")
}
