package forge

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/domain"
)

const issueFields = "number,title,body,labels,state"
const prFields = "number,title,body,labels,state,headRefName,baseRefName"

// runner executes the gh binary; injectable for tests.
type runner func(stdin string, args ...string) (string, error)

// GH is the production Client backed by the GitHub CLI.
type GH struct {
	repo string
	bin  string
	run  runner
}

// NewGH creates a GH client for the given owner/repo using the gh binary
// at bin ("gh" if empty).
func NewGH(repo, bin string) *GH {
	if bin == "" {
		bin = "gh"
	}
	g := &GH{repo: repo, bin: bin}
	g.run = g.exec
	return g
}

func (g *GH) exec(stdin string, args ...string) (string, error) {
	debug.Logf("gh %s", strings.Join(args, " "))
	cmd := exec.Command(g.bin, args...) //nolint:gosec // args are built internally
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("gh %s: %w (%s)", strings.Join(args, " "), err, stderr)
	}
	return string(out), nil
}

func (g *GH) DefaultBranch() (string, error) {
	out, err := g.run("", "api", "repos/"+g.repo, "--jq", ".default_branch")
	if err != nil || strings.TrimSpace(out) == "" {
		// Fallback keeps the worker moving when the API call is flaky.
		return "main", err
	}
	return strings.TrimSpace(out), nil
}

func itemFromJSON(v gjson.Result, kind domain.Kind) domain.WorkItem {
	var labels []string
	for _, l := range v.Get("labels").Array() {
		labels = append(labels, l.Get("name").String())
	}
	return domain.WorkItem{
		Number:  int(v.Get("number").Int()),
		Kind:    kind,
		Title:   v.Get("title").String(),
		Body:    v.Get("body").String(),
		Labels:  labels,
		State:   v.Get("state").String(),
		HeadRef: v.Get("headRefName").String(),
		BaseRef: v.Get("baseRefName").String(),
	}
}

func (g *GH) list(noun string, fields string, kind domain.Kind, labels []string) ([]domain.WorkItem, error) {
	args := []string{noun, "list", "--repo", g.repo, "--state", "open", "--json", fields, "--limit", "30"}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	out, err := g.run("", args...)
	if err != nil {
		return nil, err
	}
	var items []domain.WorkItem
	for _, v := range gjson.Parse(out).Array() {
		items = append(items, itemFromJSON(v, kind))
	}
	return items, nil
}

func (g *GH) ListIssues(labels []string) ([]domain.WorkItem, error) {
	return g.list("issue", issueFields, domain.KindIssue, labels)
}

func (g *GH) ListPRs(labels []string) ([]domain.WorkItem, error) {
	return g.list("pr", prFields, domain.KindPullRequest, labels)
}

func (g *GH) view(noun string, fields string, kind domain.Kind, number int) (*domain.WorkItem, error) {
	out, err := g.run("", noun, "view", strconv.Itoa(number), "--repo", g.repo, "--json", fields)
	if err != nil {
		return nil, err
	}
	item := itemFromJSON(gjson.Parse(out), kind)
	return &item, nil
}

func (g *GH) Issue(number int) (*domain.WorkItem, error) {
	return g.view("issue", issueFields, domain.KindIssue, number)
}

func (g *GH) PR(number int) (*domain.WorkItem, error) {
	return g.view("pr", prFields, domain.KindPullRequest, number)
}

func (g *GH) CreateIssue(title, body string, labels []string) (int, error) {
	args := []string{"issue", "create", "--repo", g.repo, "--title", title, "--body", body}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	out, err := g.run("", args...)
	if err != nil {
		return 0, err
	}
	return numberFromURL(out)
}

func (g *GH) CreatePR(title, body, head, base string, labels []string) (int, error) {
	args := []string{"pr", "create", "--repo", g.repo,
		"--title", title, "--body", body, "--head", head, "--base", base}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	out, err := g.run("", args...)
	if err != nil {
		return 0, err
	}
	return numberFromURL(out)
}

// numberFromURL extracts the item number from the URL gh prints after
// issue/pr creation.
func numberFromURL(out string) (int, error) {
	out = strings.TrimSpace(out)
	idx := strings.LastIndex(out, "/")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected gh output: %q", out)
	}
	n, err := strconv.Atoi(out[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("parse item number from %q: %w", out, err)
	}
	return n, nil
}

func (g *GH) UpdateIssueBody(number int, body string) error {
	payload, err := sjson.Set("", "body", body)
	if err != nil {
		return fmt.Errorf("build issue body payload: %w", err)
	}
	_, err = g.run(payload, "api", "-X", "PATCH",
		fmt.Sprintf("repos/%s/issues/%d", g.repo, number), "--input", "-")
	return err
}

func (g *GH) PRDiff(number int) (string, error) {
	return g.run("", "pr", "diff", strconv.Itoa(number), "--repo", g.repo)
}

func (g *GH) Comments(number int, limit int) ([]domain.Comment, error) {
	out, err := g.run("", "api",
		fmt.Sprintf("repos/%s/issues/%d/comments?per_page=%d", g.repo, number, limit))
	if err != nil {
		return nil, err
	}
	var comments []domain.Comment
	for _, v := range gjson.Parse(out).Array() {
		created, _ := time.Parse(time.RFC3339, v.Get("created_at").String())
		comments = append(comments, domain.Comment{
			ID:        v.Get("id").Int(),
			Body:      v.Get("body").String(),
			CreatedAt: created,
		})
	}
	return comments, nil
}

func (g *GH) Comment(number int, kind domain.Kind, body string) error {
	noun := "issue"
	if kind == domain.KindPullRequest {
		noun = "pr"
	}
	_, err := g.run("", noun, "comment", strconv.Itoa(number), "--repo", g.repo, "--body", body)
	return err
}

func (g *GH) Labels(number int, kind domain.Kind) ([]string, error) {
	noun := "issue"
	if kind == domain.KindPullRequest {
		noun = "pr"
	}
	out, err := g.run("", noun, "view", strconv.Itoa(number), "--repo", g.repo, "--json", "labels")
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, l := range gjson.Get(out, "labels").Array() {
		labels = append(labels, l.Get("name").String())
	}
	return labels, nil
}

func (g *GH) editLabel(number int, kind domain.Kind, flag, label string) error {
	noun := "issue"
	if kind == domain.KindPullRequest {
		noun = "pr"
	}
	_, err := g.run("", noun, "edit", strconv.Itoa(number), "--repo", g.repo, flag, label)
	return err
}

func (g *GH) AddLabel(number int, kind domain.Kind, label string) error {
	return g.editLabel(number, kind, "--add-label", label)
}

func (g *GH) RemoveLabel(number int, kind domain.Kind, label string) error {
	return g.editLabel(number, kind, "--remove-label", label)
}

func (g *GH) Reviews(number int) ([]Review, error) {
	out, err := g.run("", "api", fmt.Sprintf("repos/%s/pulls/%d/reviews", g.repo, number))
	if err != nil {
		return nil, err
	}
	var reviews []Review
	for _, v := range gjson.Parse(out).Array() {
		submitted, _ := time.Parse(time.RFC3339, v.Get("submitted_at").String())
		reviews = append(reviews, Review{
			State:       v.Get("state").String(),
			Body:        v.Get("body").String(),
			SubmittedAt: submitted,
		})
	}
	return reviews, nil
}

func (g *GH) Approve(number int, body string) error {
	_, err := g.run("", "pr", "review", strconv.Itoa(number), "--repo", g.repo,
		"--approve", "--body", body)
	return err
}

func (g *GH) RequestChanges(number int, body string) error {
	_, err := g.run("", "pr", "review", strconv.Itoa(number), "--repo", g.repo,
		"--request-changes", "--body", body)
	return err
}

func (g *GH) Merge(number int, method string) error {
	_, err := g.run("", "pr", "merge", strconv.Itoa(number), "--repo", g.repo,
		"--"+method, "--delete-branch")
	return err
}

func (g *GH) Checks(number int) (CheckState, error) {
	out, err := g.run("", "pr", "checks", strconv.Itoa(number), "--repo", g.repo,
		"--json", "name,state")
	if err != nil {
		// gh exits non-zero when no checks are configured; treat as pass.
		if strings.Contains(err.Error(), "no checks") {
			return CheckSuccess, nil
		}
		return CheckPending, err
	}

	checks := gjson.Parse(out).Array()
	if len(checks) == 0 {
		return CheckSuccess, nil
	}

	state := CheckSuccess
	for _, c := range checks {
		switch strings.ToLower(c.Get("state").String()) {
		case "failure", "error", "cancelled", "timed_out":
			return CheckFailure, nil
		case "success", "neutral", "skipped":
		default:
			state = CheckPending
		}
	}
	return state, nil
}

func (g *GH) CheckFailureLogs(number int) (string, error) {
	out, err := g.run("", "pr", "checks", strconv.Itoa(number), "--repo", g.repo,
		"--json", "name,state,link")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range gjson.Parse(out).Array() {
		state := strings.ToLower(c.Get("state").String())
		if state == "failure" || state == "error" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n",
				c.Get("name").String(), state, c.Get("link").String())
		}
	}
	if b.Len() == 0 {
		return "No failing check details available.", nil
	}
	return b.String(), nil
}

var _ Client = (*GH)(nil)
