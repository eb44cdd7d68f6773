package retry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testKeywords = []string{
	"ambiguous",
	"unclear",
	"not specified",
	"undefined behavior",
	"missing requirement",
	"conflicting requirement",
	"cannot determine",
	"insufficient information",
}

func TestSpecUnclear(t *testing.T) {
	longSpec := strings.Repeat("The parser accepts RFC3339 timestamps. ", 5)

	tests := []struct {
		name    string
		spec    string
		failure string
		want    bool
	}{
		{"short spec", "add a parser", "tests failed", true},
		{"whitespace does not pad length", strings.Repeat(" ", 200) + "short", "tests failed", true},
		{"long clean spec", longSpec, "assertion failed: got 3, want 4", false},
		{"keyword in failure", longSpec, "behavior is Ambiguous for empty input", true},
		{"multi-word keyword", longSpec, "the rounding mode is not specified", true},
		{"keyword case insensitive", longSpec, "CANNOT DETERMINE expected output", true},
		{"keyword must match failure not spec", longSpec + " unclear", "tests failed", false},
		{"empty failure long spec", longSpec, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpecUnclear(tt.spec, tt.failure, 100, testKeywords))
		})
	}
}
