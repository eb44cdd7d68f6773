// Package prompt builds the prompts the agents send to the generation
// backend. Keeping them in one place makes the wording reviewable and the
// structured output contracts (the review JSON shape) explicit.
package prompt

import (
	"fmt"
	"strings"
)

// Tests asks for a test suite derived from the specification, before any
// implementation exists.
func Tests(spec string) string {
	var b strings.Builder
	b.WriteString("You are implementing a feature using test-driven development.\n")
	b.WriteString("Write the tests FIRST, based only on the specification below. Do not write the implementation yet.\n")
	b.WriteString("The tests must fail until the feature is implemented. Cover the acceptance criteria and edge cases the specification names.\n\n")
	b.WriteString("## Specification\n\n")
	b.WriteString(spec)
	return b.String()
}

// Implementation asks for an implementation that makes the tests pass.
// failureContext carries accumulated detail from prior attempts and is
// empty on the first attempt.
func Implementation(spec, failureContext string) string {
	var b strings.Builder
	b.WriteString("Implement the feature described in the specification below so that the existing tests pass.\n")
	b.WriteString("Run the test suite before finishing. Do not weaken or delete tests to make them pass.\n\n")
	b.WriteString("## Specification\n\n")
	b.WriteString(spec)
	if failureContext != "" {
		b.WriteString("\n\n## Previous attempts failed\n\n")
		b.WriteString(failureContext)
	}
	return b.String()
}

// CheckFix asks for a fix of a failing CI run.
func CheckFix(spec, failureLogs string) string {
	var b strings.Builder
	b.WriteString("The continuous integration checks for this change are failing. Fix the failures without changing the intended behavior.\n\n")
	b.WriteString("## Failing checks\n\n")
	b.WriteString(failureLogs)
	b.WriteString("\n\n## Original specification\n\n")
	b.WriteString(spec)
	return b.String()
}

// Review asks for a structured code review. The JSON shape is a contract:
// the reviewer agent parses exactly these fields.
func Review(title, body, diff string) string {
	var b strings.Builder
	b.WriteString("Review the following pull request. Respond with ONLY a JSON object, no prose around it, in this exact shape:\n\n")
	b.WriteString("{\n")
	b.WriteString("  \"summary\": \"one paragraph overall assessment\",\n")
	b.WriteString("  \"issues\": [\n")
	b.WriteString("    {\"severity\": \"critical|major|minor|trivial\", \"file\": \"path\", \"comment\": \"what and why\"}\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")
	b.WriteString("Severity guide: critical = incorrect or unsafe behavior; major = bug or missing requirement; minor = style or clarity; trivial = nitpick.\n\n")
	fmt.Fprintf(&b, "## Pull request: %s\n\n%s\n\n## Diff\n\n```diff\n%s\n```\n", title, body, diff)
	return b.String()
}

// SpecFromStory asks for a full implementation specification from a short
// user story.
func SpecFromStory(story string) string {
	var b strings.Builder
	b.WriteString("Turn the user story below into a complete implementation specification for an autonomous developer.\n")
	b.WriteString("The specification must include: overview, acceptance criteria, edge cases, dependencies, data formats, and error handling.\n")
	b.WriteString("Be concrete enough that the implementation needs no further questions. Respond with the specification text only.\n\n")
	b.WriteString("## User story\n\n")
	b.WriteString(story)
	return b.String()
}

// SpecRefinement asks for a revised specification that answers the
// clarification feedback an implementation attempt produced.
func SpecRefinement(currentSpec, feedback string) string {
	var b strings.Builder
	b.WriteString("An implementation attempt failed because the specification below was too ambiguous. Rewrite the specification so it answers every open point in the feedback.\n")
	b.WriteString("Keep everything that was already clear. Respond with the full revised specification text only.\n\n")
	b.WriteString("## Current specification\n\n")
	b.WriteString(currentSpec)
	b.WriteString("\n\n## Clarification feedback\n\n")
	b.WriteString(feedback)
	return b.String()
}
