package collector

import (
	"fmt"
	"strings"
)

// ValidateMarkdown checks a submission for structural well-formedness only:
// non-empty content and the presence of every required section header. Agent
// output is opaque data; nothing in it is ever interpreted or executed.
func ValidateMarkdown(content string, requiredSections []string) (bool, string) {
	if strings.TrimSpace(content) == "" {
		return false, "empty output"
	}

	for _, section := range requiredSections {
		if !hasHeader(content, section) {
			return false, fmt.Sprintf("missing required section %q", section)
		}
	}
	return true, ""
}

// hasHeader reports whether the header occurs at the start of a line.
func hasHeader(content, header string) bool {
	for line := range strings.Lines(content) {
		if strings.HasPrefix(strings.TrimSpace(line), header) {
			return true
		}
	}
	return false
}
