package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImplementationOmitsEmptyFailureContext(t *testing.T) {
	p := Implementation("the spec", "")
	assert.Contains(t, p, "the spec")
	assert.NotContains(t, p, "Previous attempts failed")

	p = Implementation("the spec", "attempt 1 broke")
	assert.Contains(t, p, "Previous attempts failed")
	assert.Contains(t, p, "attempt 1 broke")
}

func TestReviewEmbedsJSONContract(t *testing.T) {
	p := Review("Add parser", "implements #7", "+func Parse()")
	assert.Contains(t, p, `"severity": "critical|major|minor|trivial"`)
	assert.Contains(t, p, `"summary"`)
	assert.Contains(t, p, "Add parser")
	assert.Contains(t, p, "+func Parse()")
}

func TestSpecPromptsCarryInputs(t *testing.T) {
	assert.Contains(t, SpecFromStory("as a user I want CSV export"), "CSV export")

	p := SpecRefinement("old spec", "what is the rounding mode?")
	assert.Contains(t, p, "old spec")
	assert.Contains(t, p, "rounding mode")
}

func TestTestsPromptDemandsTDD(t *testing.T) {
	p := Tests("the spec")
	assert.Contains(t, p, "tests FIRST")
	assert.Contains(t, p, "the spec")
}
