// Package redact scrubs PHI-shaped substrings from free text before it is
// persisted anywhere. It is deliberately pattern-based: SSNs, US phone
// numbers, and email addresses. It does not catch names, addresses, or MRNs,
// so callers must not treat its output as fully de-identified.
package redact

import "regexp"

// Rule order matters: the SSN pattern is applied before the phone pattern
// because both are digit-run patterns and can overlap on some inputs.
// Reordering changes output for those inputs.
var rules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{3}[-.]?\d{2}[-.]?\d{4}\b`), "[REDACTED-SSN]"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "[REDACTED-PHONE]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED-EMAIL]"},
}

// Scrub replaces every PHI-shaped substring with a fixed placeholder.
// It is pure, total, and idempotent: unmatched text passes through unchanged
// and placeholders themselves never match any rule.
func Scrub(s string) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}
