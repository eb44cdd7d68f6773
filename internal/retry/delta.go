package retry

import (
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// FailureDelta renders a unified diff between two consecutive failure
// reports. An empty diff means the retry is stagnating: the generation
// step reproduced the same failure verbatim.
func FailureDelta(prev, cur string) string {
	if prev == "" || prev == cur {
		return ""
	}
	return strings.TrimSpace(udiff.Unified("previous attempt", "current attempt", prev, cur))
}
