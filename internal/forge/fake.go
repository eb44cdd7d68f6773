package forge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/domain"
)

// Fake is an in-memory Client for tests. Comment timestamps come from the
// injected clock so lock-protocol tests can control claim ages precisely.
type Fake struct {
	mu         sync.Mutex
	clk        clock.Clock
	nextNumber int
	nextID     int64
	branch     string
	items      map[int]*fakeItem

	// checkQueue holds per-PR CI states returned by successive Checks
	// calls; the last state repeats once the queue drains.
	checkQueue map[int][]CheckState
	logs       map[int]string
	merged     map[int]string

	// Errors injects a failure for the named operation ("AddLabel",
	// "Comment", ...). The error is returned on every call until cleared.
	Errors map[string]error

	// DropLabelAdds makes AddLabel report success without applying the
	// label, simulating a write that never became visible.
	DropLabelAdds bool
}

type fakeItem struct {
	item     domain.WorkItem
	comments []domain.Comment
	reviews  []Review
	diff     string
}

// NewFake creates an empty fake forge stamping comments with clk.
func NewFake(clk clock.Clock) *Fake {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Fake{
		clk:        clk,
		nextNumber: 1,
		branch:     "main",
		items:      make(map[int]*fakeItem),
		checkQueue: make(map[int][]CheckState),
		logs:       make(map[int]string),
		merged:     make(map[int]string),
		Errors:     make(map[string]error),
	}
}

func (f *Fake) errFor(op string) error {
	if err, ok := f.Errors[op]; ok && err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Seed inserts a work item and returns its number.
func (f *Fake) Seed(item domain.WorkItem) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.Number == 0 {
		item.Number = f.nextNumber
	}
	if item.Number >= f.nextNumber {
		f.nextNumber = item.Number + 1
	}
	if item.State == "" {
		item.State = "open"
	}
	f.items[item.Number] = &fakeItem{item: item}
	return item.Number
}

// SetDiff sets the diff returned by PRDiff.
func (f *Fake) SetDiff(number int, diff string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[number]; ok {
		it.diff = diff
	}
}

// QueueChecks appends CI states returned by successive Checks calls.
func (f *Fake) QueueChecks(number int, states ...CheckState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkQueue[number] = append(f.checkQueue[number], states...)
}

// SetCheckFailureLogs sets the text returned by CheckFailureLogs.
func (f *Fake) SetCheckFailureLogs(number int, logs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[number] = logs
}

// AddReview records a submitted review.
func (f *Fake) AddReview(number int, r Review) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[number]; ok {
		it.reviews = append(it.reviews, r)
	}
}

// LabelsOf returns the current labels for assertions.
func (f *Fake) LabelsOf(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[number]; ok {
		out := make([]string, len(it.item.Labels))
		copy(out, it.item.Labels)
		return out
	}
	return nil
}

// CommentsOf returns all comment bodies for assertions.
func (f *Fake) CommentsOf(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	if it, ok := f.items[number]; ok {
		for _, c := range it.comments {
			out = append(out, c.Body)
		}
	}
	return out
}

// MergedWith returns the merge method used, or "" if not merged.
func (f *Fake) MergedWith(number int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merged[number]
}

func (f *Fake) DefaultBranch() (string, error) {
	if err := f.errFor("DefaultBranch"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branch, nil
}

func (f *Fake) listKind(kind domain.Kind, labels []string) ([]domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkItem
	for _, it := range f.items {
		if it.item.Kind != kind || it.item.State != "open" {
			continue
		}
		match := true
		for _, l := range labels {
			if !it.item.HasLabel(l) {
				match = false
				break
			}
		}
		if match {
			out = append(out, it.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *Fake) ListIssues(labels []string) ([]domain.WorkItem, error) {
	if err := f.errFor("ListIssues"); err != nil {
		return nil, err
	}
	return f.listKind(domain.KindIssue, labels)
}

func (f *Fake) ListPRs(labels []string) ([]domain.WorkItem, error) {
	if err := f.errFor("ListPRs"); err != nil {
		return nil, err
	}
	return f.listKind(domain.KindPullRequest, labels)
}

func (f *Fake) get(number int) (*fakeItem, error) {
	it, ok := f.items[number]
	if !ok {
		return nil, fmt.Errorf("item #%d not found", number)
	}
	return it, nil
}

func (f *Fake) Issue(number int) (*domain.WorkItem, error) {
	if err := f.errFor("Issue"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return nil, err
	}
	item := it.item
	return &item, nil
}

func (f *Fake) PR(number int) (*domain.WorkItem, error) {
	if err := f.errFor("PR"); err != nil {
		return nil, err
	}
	return f.Issue(number)
}

func (f *Fake) CreateIssue(title, body string, labels []string) (int, error) {
	if err := f.errFor("CreateIssue"); err != nil {
		return 0, err
	}
	return f.Seed(domain.WorkItem{Kind: domain.KindIssue, Title: title, Body: body, Labels: labels}), nil
}

func (f *Fake) CreatePR(title, body, head, base string, labels []string) (int, error) {
	if err := f.errFor("CreatePR"); err != nil {
		return 0, err
	}
	return f.Seed(domain.WorkItem{
		Kind: domain.KindPullRequest, Title: title, Body: body,
		Labels: labels, HeadRef: head, BaseRef: base,
	}), nil
}

func (f *Fake) UpdateIssueBody(number int, body string) error {
	if err := f.errFor("UpdateIssueBody"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return err
	}
	it.item.Body = body
	return nil
}

func (f *Fake) PRDiff(number int) (string, error) {
	if err := f.errFor("PRDiff"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return "", err
	}
	return it.diff, nil
}

func (f *Fake) Comments(number int, limit int) ([]domain.Comment, error) {
	if err := f.errFor("Comments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return nil, err
	}
	comments := it.comments
	if limit > 0 && len(comments) > limit {
		comments = comments[len(comments)-limit:]
	}
	out := make([]domain.Comment, len(comments))
	copy(out, comments)
	return out, nil
}

func (f *Fake) Comment(number int, _ domain.Kind, body string) error {
	if err := f.errFor("Comment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return err
	}
	f.nextID++
	it.comments = append(it.comments, domain.Comment{
		ID:        f.nextID,
		Body:      body,
		CreatedAt: f.clk.Now(),
	})
	return nil
}

func (f *Fake) Labels(number int, _ domain.Kind) ([]string, error) {
	if err := f.errFor("Labels"); err != nil {
		return nil, err
	}
	return f.LabelsOf(number), nil
}

func (f *Fake) AddLabel(number int, _ domain.Kind, label string) error {
	if err := f.errFor("AddLabel"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return err
	}
	if f.DropLabelAdds {
		return nil
	}
	if !it.item.HasLabel(label) {
		it.item.Labels = append(it.item.Labels, label)
	}
	return nil
}

func (f *Fake) RemoveLabel(number int, _ domain.Kind, label string) error {
	if err := f.errFor("RemoveLabel"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return err
	}
	var kept []string
	for _, l := range it.item.Labels {
		if l != label {
			kept = append(kept, l)
		}
	}
	it.item.Labels = kept
	return nil
}

func (f *Fake) Reviews(number int) ([]Review, error) {
	if err := f.errFor("Reviews"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.get(number)
	if err != nil {
		return nil, err
	}
	out := make([]Review, len(it.reviews))
	copy(out, it.reviews)
	return out, nil
}

func (f *Fake) Approve(number int, body string) error {
	if err := f.errFor("Approve"); err != nil {
		return err
	}
	f.AddReview(number, Review{State: "APPROVED", Body: body, SubmittedAt: f.clk.Now()})
	return nil
}

func (f *Fake) RequestChanges(number int, body string) error {
	if err := f.errFor("RequestChanges"); err != nil {
		return err
	}
	f.AddReview(number, Review{State: "CHANGES_REQUESTED", Body: body, SubmittedAt: f.clk.Now()})
	return nil
}

func (f *Fake) Merge(number int, method string) error {
	if err := f.errFor("Merge"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged[number] = method
	return nil
}

func (f *Fake) Checks(number int) (CheckState, error) {
	if err := f.errFor("Checks"); err != nil {
		return CheckPending, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.checkQueue[number]
	if len(q) == 0 {
		return CheckSuccess, nil
	}
	state := q[0]
	if len(q) > 1 {
		f.checkQueue[number] = q[1:]
	}
	return state, nil
}

func (f *Fake) CheckFailureLogs(number int) (string, error) {
	if err := f.errFor("CheckFailureLogs"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if logs, ok := f.logs[number]; ok {
		return logs, nil
	}
	return "No failing check details available.", nil
}

// ContainsComment reports whether any comment body contains the substring.
func (f *Fake) ContainsComment(number int, substr string) bool {
	for _, b := range f.CommentsOf(number) {
		if strings.Contains(b, substr) {
			return true
		}
	}
	return false
}

var _ Client = (*Fake)(nil)
