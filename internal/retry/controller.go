// Package retry drives the bounded attempt loops: generate/validate with
// accumulated failure context, and the external-check poll/fix cycle.
// Budget exhaustion always converts into a deterministic terminal decision,
// never a silent drop.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/forge"
)

// Outcome classifies how an attempt loop ended.
type Outcome int

const (
	// Succeeded means a validation pass within the budget.
	Succeeded Outcome = iota
	// NeedsClarification means the budget ran out and the heuristic blames
	// the specification.
	NeedsClarification
	// Exhausted means the budget ran out for a technical cause.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case NeedsClarification:
		return "needs clarification"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// CheckOutcome classifies how the external-check loop ended.
type CheckOutcome int

const (
	CheckPassed CheckOutcome = iota
	// CheckTimedOut means the check never resolved within the timeout. The
	// item proceeds anyway with a warning; blocking forever costs more than
	// an occasionally unverified change.
	CheckTimedOut
	// CheckExhausted means the fix budget ran out with the check still red.
	CheckExhausted
)

func (o CheckOutcome) String() string {
	switch o {
	case CheckPassed:
		return "passed"
	case CheckTimedOut:
		return "timed out"
	case CheckExhausted:
		return "fix budget exhausted"
	}
	return "unknown"
}

// Controller holds the budgets and timing knobs for one work item's
// attempt session.
type Controller struct {
	MaxAttempts       int
	MaxCheckFix       int
	CheckPoll         time.Duration
	CheckTimeout      time.Duration
	MinSpecLength     int
	AmbiguityKeywords []string
	Clock             clock.Clock
}

// Result reports a finished generate/validate loop.
type Result struct {
	Outcome  Outcome
	Attempts int
	Failures []string
}

// LastFailure returns the most recent failure detail, or "".
func (r Result) LastFailure() string {
	if len(r.Failures) == 0 {
		return ""
	}
	return r.Failures[len(r.Failures)-1]
}

// FailureContext renders the accumulated failures for the next attempt's
// prompt, including a delta against the previous attempt so a stagnating
// retry is visible to the generator.
func FailureContext(failures []string) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failures {
		fmt.Fprintf(&b, "### Attempt %d failure\n\n%s\n\n", i+1, f)
	}
	if len(failures) >= 2 {
		delta := FailureDelta(failures[len(failures)-2], failures[len(failures)-1])
		if delta == "" {
			b.WriteString("The last two attempts failed identically. Change the approach, do not refine it.\n")
		} else {
			fmt.Fprintf(&b, "### What changed between the last two failures\n\n```diff\n%s\n```\n", delta)
		}
	}
	return b.String()
}

// Generate produces a candidate for one attempt; failureContext is empty on
// the first attempt. Validate checks the candidate and returns failure
// detail when it rejects. A Generate error counts against the budget like
// a validation failure.
type Hooks struct {
	Generate func(ctx context.Context, failureContext string) error
	Validate func(ctx context.Context) (detail string, ok bool, err error)
}

// Run drives the generate/validate loop over the given specification text.
// It never transitions labels itself; the caller maps the Outcome to a
// state transition.
func (c *Controller) Run(ctx context.Context, spec string, hooks Hooks) (Result, error) {
	res := Result{}
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Attempts = attempt + 1
		if err := hooks.Generate(ctx, FailureContext(res.Failures)); err != nil {
			debug.Logf("retry: attempt %d generation failed: %v", attempt+1, err)
			res.Failures = append(res.Failures, fmt.Sprintf("generation failed: %v", err))
			continue
		}
		detail, ok, err := hooks.Validate(ctx)
		if err != nil {
			return res, fmt.Errorf("validate attempt %d: %w", attempt+1, err)
		}
		if ok {
			res.Outcome = Succeeded
			return res, nil
		}
		res.Failures = append(res.Failures, detail)
	}
	if SpecUnclear(spec, strings.Join(res.Failures, "\n"), c.MinSpecLength, c.AmbiguityKeywords) {
		res.Outcome = NeedsClarification
	} else {
		res.Outcome = Exhausted
	}
	return res, nil
}

// CheckHooks feed the external-check loop.
type CheckHooks struct {
	Poll          func() (forge.CheckState, error)
	FailureDetail func() (string, error)
	Fix           func(ctx context.Context, detail string) error
}

// CheckResult reports a finished external-check loop.
type CheckResult struct {
	Outcome     CheckOutcome
	FixAttempts int
}

// AwaitChecks polls the external check until success, a timeout, or fix
// exhaustion. Every observed failure consumes one fix attempt; a fix
// restarts the timeout window. The fix budget caps fixes, so exhaustion is
// declared on the failure observed after the last fix, without a further
// fix attempt.
func (c *Controller) AwaitChecks(ctx context.Context, hooks CheckHooks) (CheckResult, error) {
	res := CheckResult{}
	deadline := c.Clock.Now().Add(c.CheckTimeout)
	for {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		state, err := hooks.Poll()
		if err != nil {
			return res, fmt.Errorf("poll checks: %w", err)
		}
		switch state {
		case forge.CheckSuccess:
			res.Outcome = CheckPassed
			return res, nil
		case forge.CheckFailure:
			if res.FixAttempts >= c.MaxCheckFix {
				res.Outcome = CheckExhausted
				return res, nil
			}
			detail, err := hooks.FailureDetail()
			if err != nil {
				detail = fmt.Sprintf("failure detail unavailable: %v", err)
			}
			res.FixAttempts++
			debug.Logf("retry: check failed, fix attempt %d/%d", res.FixAttempts, c.MaxCheckFix)
			if err := hooks.Fix(ctx, detail); err != nil {
				debug.Logf("retry: fix attempt %d failed: %v", res.FixAttempts, err)
			}
			deadline = c.Clock.Now().Add(c.CheckTimeout)
		case forge.CheckPending:
			if !c.Clock.Now().Before(deadline) {
				res.Outcome = CheckTimedOut
				return res, nil
			}
		}
		c.Clock.Sleep(ctx, c.CheckPoll)
	}
}
