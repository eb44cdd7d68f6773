// Package lock implements optimistic, leaderless mutual exclusion over an
// item's append-only comment log and its label set. Agents announce a
// claim, wait a grace interval for concurrent announces to surface, resolve
// a single deterministic winner, and only then flip the status label.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/workflow"
)

// commentScan bounds how many recent comments resolution reads.
const commentScan = 100

// Outcome is the result of an acquisition attempt. LostRace and
// VerificationFailed are ordinary negative results, not errors: the caller
// moves on and retries on a later poll cycle.
type Outcome int

const (
	Acquired Outcome = iota
	LostRace
	VerificationFailed
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case LostRace:
		return "lost race"
	case VerificationFailed:
		return "verification failed"
	}
	return "unknown"
}

// Windows holds the protocol timing parameters. Conflict must be strictly
// smaller than Active: a claim older than the conflict window but younger
// than the active window belongs to an agent still legitimately working,
// not a competitor for this acquisition.
type Windows struct {
	Active   time.Duration
	Conflict time.Duration
	Grace    time.Duration
}

// Manager runs the claim protocol for one agent identity and role.
type Manager struct {
	forge   forge.Client
	clk     clock.Clock
	role    string
	agentID string
	win     Windows
}

func NewManager(f forge.Client, clk clock.Clock, role, agentID string, win Windows) *Manager {
	return &Manager{forge: f, clk: clk, role: role, agentID: agentID, win: win}
}

// AgentID returns the identity this manager claims with.
func (m *Manager) AgentID() string { return m.agentID }

// acks lists parsed claim entries for this manager's role, newest last.
func (m *Manager) acks(item *domain.WorkItem) ([]Ack, error) {
	comments, err := forge.WithRetry(m.clk, "list comments", func() ([]domain.Comment, error) {
		return m.forge.Comments(item.Number, commentScan)
	})
	if err != nil {
		return nil, err
	}
	var out []Ack
	for _, c := range comments {
		ack, ok := ParseAck(c.Body)
		if !ok || ack.Role != m.role {
			continue
		}
		out = append(out, ack)
	}
	return out, nil
}

// ActiveClaim returns the winning claim younger than the active-lock
// window, or nil when no live claim exists. Workers use a nil result on a
// claimed-state item as the stale-lock recovery signal.
func (m *Manager) ActiveClaim(item *domain.WorkItem) (*Ack, error) {
	acks, err := m.acks(item)
	if err != nil {
		return nil, err
	}
	now := m.clk.Now()
	var live *Ack
	for i := range acks {
		a := acks[i]
		if now.Sub(a.Time()) > m.win.Active {
			continue
		}
		if live == nil || a.beats(*live) {
			live = &a
		}
	}
	return live, nil
}

// TryAcquire runs the full claim protocol: announce, grace wait, resolve,
// transition, verify. A nil error with a non-Acquired outcome means another
// agent is progressing the item; only infrastructure faults are errors.
func (m *Manager) TryAcquire(ctx context.Context, item *domain.WorkItem, from, to workflow.State) (Outcome, error) {
	// Advisory pre-check. An existing live claim usually means a lost
	// race, but it may also be abandoned, so the protocol continues
	// optimistically either way.
	if prior, err := m.ActiveClaim(item); err != nil {
		return LostRace, err
	} else if prior != nil && prior.AgentID != m.agentID {
		debug.Logf("lock: #%d has live claim by %s, contending anyway", item.Number, prior.AgentID)
	}

	own := Ack{Role: m.role, AgentID: m.agentID, TimestampMs: m.clk.Now().UnixMilli()}
	err := forge.WithRetryErr(m.clk, "announce claim", func() error {
		return m.forge.Comment(item.Number, item.Kind, own.String())
	})
	if err != nil {
		return LostRace, err
	}

	// Grace wait lets concurrent announces propagate before resolving.
	m.clk.Sleep(ctx, m.win.Grace)
	if ctx.Err() != nil {
		return LostRace, ctx.Err()
	}

	acks, err := m.acks(item)
	if err != nil {
		return LostRace, err
	}
	winner := resolve(acks, own, m.clk.Now(), m.win.Conflict)
	if winner.AgentID != m.agentID {
		debug.Logf("lock: #%d lost to %s (ts %d)", item.Number, winner.AgentID, winner.TimestampMs)
		return LostRace, nil
	}

	// Re-read before flipping the label; a winner from an earlier round
	// may already have moved the item past expectedState.
	labels, err := forge.WithRetry(m.clk, "read labels", func() ([]string, error) {
		return m.forge.Labels(item.Number, item.Kind)
	})
	if err != nil {
		return LostRace, err
	}
	observed := domain.WorkItem{Number: item.Number, Kind: item.Kind, Labels: labels}
	if err := workflow.Check(&observed, from, to); err != nil {
		debug.Logf("lock: #%d transition precondition failed: %v", item.Number, err)
		return LostRace, nil
	}
	if err := m.flip(item, from, to); err != nil {
		return LostRace, err
	}

	// Verify the transition durably applied.
	labels, err = forge.WithRetry(m.clk, "verify labels", func() ([]string, error) {
		return m.forge.Labels(item.Number, item.Kind)
	})
	if err != nil {
		return VerificationFailed, err
	}
	verified := domain.WorkItem{Labels: labels}
	if !verified.HasLabel(to.Label()) {
		return VerificationFailed, nil
	}
	item.Labels = labels
	return Acquired, nil
}

// resolve picks the winning claim among entries inside the conflict
// window. Entries older than the window belong to earlier acquisition
// rounds and do not compete. The decision depends only on the entry set,
// never on log read order.
func resolve(acks []Ack, own Ack, now time.Time, window time.Duration) Ack {
	winner := own
	for _, a := range acks {
		if now.Sub(a.Time()) > window {
			continue
		}
		if a.beats(winner) {
			winner = a
		}
	}
	return winner
}

func (m *Manager) flip(item *domain.WorkItem, from, to workflow.State) error {
	if err := m.forge.RemoveLabel(item.Number, item.Kind, from.Label()); err != nil {
		return fmt.Errorf("remove %s: %w", from.Label(), err)
	}
	if err := m.forge.AddLabel(item.Number, item.Kind, to.Label()); err != nil {
		return fmt.Errorf("add %s: %w", to.Label(), err)
	}
	return nil
}

// Release transitions a held item to its next state, validating against
// the transition table and the observed label.
func (m *Manager) Release(item *domain.WorkItem, from, to workflow.State) error {
	labels, err := m.forge.Labels(item.Number, item.Kind)
	if err != nil {
		return err
	}
	observed := domain.WorkItem{Number: item.Number, Kind: item.Kind, Labels: labels}
	if err := workflow.Check(&observed, from, to); err != nil {
		return err
	}
	if err := m.flip(item, from, to); err != nil {
		return err
	}
	item.Labels = item.Labels[:0]
	for _, l := range labels {
		if l != from.Label() {
			item.Labels = append(item.Labels, l)
		}
	}
	item.Labels = append(item.Labels, to.Label())
	return nil
}

// MarkFailed posts the reason comment and transitions the item's observed
// state to Failed.
func (m *Manager) MarkFailed(item *domain.WorkItem, reason string) error {
	return m.terminate(item, workflow.Failed, reason)
}

// MarkCheckFailed posts the reason comment and transitions the item to
// CheckFailed after the fix budget ran out.
func (m *Manager) MarkCheckFailed(item *domain.WorkItem, reason string) error {
	return m.terminate(item, workflow.CheckFailed, reason)
}

// MarkNeedsClarification posts the structured feedback payload and
// transitions the item to NeedsClarification.
func (m *Manager) MarkNeedsClarification(item *domain.WorkItem, payload string) error {
	return m.terminate(item, workflow.NeedsClarification, payload)
}

func (m *Manager) terminate(item *domain.WorkItem, to workflow.State, note string) error {
	if note != "" {
		if err := m.forge.Comment(item.Number, item.Kind, note); err != nil {
			return fmt.Errorf("post terminal comment: %w", err)
		}
	}
	labels, err := m.forge.Labels(item.Number, item.Kind)
	if err != nil {
		return err
	}
	observed := domain.WorkItem{Number: item.Number, Kind: item.Kind, Labels: labels}
	from := workflow.StateOf(&observed)
	if err := workflow.Check(&observed, from, to); err != nil {
		return err
	}
	return m.flip(item, from, to)
}
