package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/workhive/internal/domain"
)

func TestLabelRoundTrip(t *testing.T) {
	for s, label := range labels {
		got, ok := FromLabel(label)
		require.True(t, ok, label)
		assert.Equal(t, s, got)
	}
	_, ok := FromLabel("status:bogus")
	assert.False(t, ok)
}

func TestStateOf(t *testing.T) {
	item := &domain.WorkItem{Labels: []string{"enhancement", "status:ready"}}
	assert.Equal(t, Ready, StateOf(item))
	assert.Equal(t, Unknown, StateOf(&domain.WorkItem{Labels: []string{"bug"}}))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Ready, Implementing, true},
		{Implementing, Testing, true},
		{Implementing, Implementing, true},
		{Implementing, NeedsClarification, true},
		{Implementing, Failed, true},
		{Testing, AwaitingCheck, true},
		{AwaitingCheck, Reviewing, true},
		{AwaitingCheck, CheckFailed, true},
		{Reviewing, InReview, true},
		{Reviewing, CheckFailed, true},
		{InReview, ChangesRequested, true},
		{ChangesRequested, Implementing, true},
		{NeedsClarification, Ready, true},

		{Ready, Testing, false},
		{Ready, Reviewing, false},
		{Testing, Implementing, false},
		{Approved, Ready, false},
		{Implementing, Approved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestEveryNonTerminalStateHasAnExit(t *testing.T) {
	for s := range labels {
		if s.Terminal() {
			continue
		}
		assert.NotEmpty(t, transitions[s], s.String())
	}
}

func TestCheckRejectsMismatchedObservedLabel(t *testing.T) {
	item := &domain.WorkItem{Number: 7, Labels: []string{"status:testing"}}
	err := Check(item, Ready, Implementing)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCheckRejectsEdgesOutsideTable(t *testing.T) {
	item := &domain.WorkItem{Number: 7, Labels: []string{"status:ready"}}
	err := Check(item, Ready, Approved)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCheckAcceptsLegalTransition(t *testing.T) {
	item := &domain.WorkItem{Number: 7, Labels: []string{"status:ready"}}
	require.NoError(t, Check(item, Ready, Implementing))
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{Approved, Failed, CheckFailed, NeedsClarification, Escalated} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []State{Ready, Implementing, Testing, AwaitingCheck, Reviewing, InReview, ChangesRequested} {
		assert.False(t, s.Terminal(), s.String())
	}
}
