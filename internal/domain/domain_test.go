package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasLabel(t *testing.T) {
	w := WorkItem{Labels: []string{"bug", "status:ready"}}
	assert.True(t, w.HasLabel("status:ready"))
	assert.False(t, w.HasLabel("status:implementing"))
}

func TestStatusLabel(t *testing.T) {
	w := WorkItem{Labels: []string{"bug", "status:ready"}}
	assert.Equal(t, "status:ready", w.StatusLabel())
	plain := WorkItem{Labels: []string{"bug"}}
	assert.Empty(t, plain.StatusLabel())
}

func TestLinkedIssue(t *testing.T) {
	assert.Equal(t, 7, LinkedIssue("Fixes things.\n\ncloses #7"))
	assert.Equal(t, 12, LinkedIssue("Closes #12"))
	assert.Equal(t, 0, LinkedIssue("no reference here"))
}

func TestNewAgentID(t *testing.T) {
	id := NewAgentID("worker")
	assert.True(t, strings.HasPrefix(id, "worker-"))
	assert.Len(t, id, len("worker-")+8)
	assert.NotEqual(t, id, NewAgentID("worker"))
}
