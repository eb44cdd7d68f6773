// Package workflow defines the label-driven state machine work items move
// through. The wire label strings ("status:*") are isolated here; the rest
// of the codebase only ever sees State values.
package workflow

import (
	"errors"
	"fmt"

	"github.com/workhive/workhive/internal/domain"
)

// State is a named point in the workflow.
type State int

const (
	Unknown State = iota
	Ready
	Implementing
	Testing
	AwaitingCheck
	Reviewing
	InReview
	Approved
	ChangesRequested
	CheckFailed
	Failed
	NeedsClarification
	Escalated
)

// ErrIllegalTransition reports a transition whose from-state did not match
// the table or the item's observed label. It signals a defect or a stale
// read, never a condition to retry in a tight loop.
var ErrIllegalTransition = errors.New("illegal workflow transition")

var labels = map[State]string{
	Ready:              "status:ready",
	Implementing:       "status:implementing",
	Testing:            "status:testing",
	AwaitingCheck:      "status:awaiting-check",
	Reviewing:          "status:reviewing",
	InReview:           "status:in-review",
	Approved:           "status:approved",
	ChangesRequested:   "status:changes-requested",
	CheckFailed:        "status:check-failed",
	Failed:             "status:failed",
	NeedsClarification: "status:needs-clarification",
	Escalated:          "status:escalated",
}

var states = func() map[string]State {
	m := make(map[string]State, len(labels))
	for s, l := range labels {
		m[l] = s
	}
	return m
}()

// transitions is the legal-transition table. Self loops cover retry
// re-entries; edges out of terminal states are planner re-entries.
// Reviewing -> CheckFailed pulls a pull request out of the review queue
// when the fix budget for its checks runs out.
var transitions = map[State][]State{
	Ready:              {Implementing},
	Implementing:       {Testing, Implementing, NeedsClarification, Failed},
	Testing:            {AwaitingCheck},
	AwaitingCheck:      {Reviewing, AwaitingCheck, CheckFailed},
	Reviewing:          {InReview, Approved, ChangesRequested, CheckFailed},
	InReview:           {Approved, ChangesRequested, Reviewing},
	ChangesRequested:   {Implementing, Failed},
	Failed:             {Ready, Escalated},
	NeedsClarification: {Ready},
	Escalated:          {Ready},
}

// Label returns the wire label for the state, or "" for Unknown.
func (s State) Label() string {
	return labels[s]
}

func (s State) String() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return "unknown"
}

// FromLabel maps a wire label back to its state.
func FromLabel(label string) (State, bool) {
	s, ok := states[label]
	return s, ok
}

// StateOf returns the state encoded in the item's labels, or Unknown if no
// status label is present.
func StateOf(item *domain.WorkItem) State {
	s, _ := FromLabel(item.StatusLabel())
	return s
}

// Terminal reports whether the state ends the item's life from the worker
// and reviewer point of view. The planner may still re-enter some of them.
func (s State) Terminal() bool {
	switch s {
	case Approved, Failed, CheckFailed, NeedsClarification, Escalated:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is in the legal table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check validates from -> to against the table and the item's observed
// label. It never mutates anything; callers apply the label change only
// after a nil return.
func Check(item *domain.WorkItem, from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if observed := StateOf(item); observed != from {
		return fmt.Errorf("%w: item #%d is %s, expected %s",
			ErrIllegalTransition, item.Number, observed, from)
	}
	return nil
}
