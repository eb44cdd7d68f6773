package retry

import (
	"fmt"
	"strings"
)

// excerptLimit bounds the failure and spec excerpts embedded in a
// clarification payload so comments stay readable.
const excerptLimit = 500

// ClarificationCategories is the fixed checklist a clarification request
// walks through. The set and order are part of the payload contract.
var ClarificationCategories = []string{
	"acceptance criteria",
	"edge cases",
	"dependencies",
	"data formats",
	"error handling",
}

// Feedback is the structured payload posted when an item routes to
// needs-clarification. Its shape, not its prose, is what the planner
// consumes.
type Feedback struct {
	ItemNumber  int
	Attempts    int
	MaxAttempts int
	Failure     string
	Spec        string
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > excerptLimit {
		return s[:excerptLimit] + "..."
	}
	return s
}

// String renders the payload as a markdown comment.
func (f Feedback) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Clarification needed for #%d\n\n", f.ItemNumber)
	fmt.Fprintf(&b, "Implementation failed after %d/%d attempts and the failure pattern suggests the specification itself is the problem.\n\n", f.Attempts, f.MaxAttempts)
	fmt.Fprintf(&b, "### Last failure\n\n```\n%s\n```\n\n", excerpt(f.Failure))
	fmt.Fprintf(&b, "### Specification excerpt\n\n```\n%s\n```\n\n", excerpt(f.Spec))
	b.WriteString("### Please clarify\n\n")
	for _, c := range ClarificationCategories {
		fmt.Fprintf(&b, "- [ ] %s\n", c)
	}
	return b.String()
}
