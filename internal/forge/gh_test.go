package forge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/workhive/internal/domain"
)

type call struct {
	stdin string
	args  []string
}

func stubGH(t *testing.T, responses ...string) (*GH, *[]call) {
	t.Helper()
	calls := &[]call{}
	g := NewGH("acme/widgets", "gh")
	g.run = func(stdin string, args ...string) (string, error) {
		*calls = append(*calls, call{stdin: stdin, args: args})
		if len(*calls) > len(responses) {
			return "", errors.New("unexpected gh call")
		}
		return responses[len(*calls)-1], nil
	}
	return g, calls
}

func TestListIssuesParsesLabels(t *testing.T) {
	g, calls := stubGH(t, `[
		{"number": 7, "title": "Add parser", "body": "spec text",
		 "labels": [{"name": "status:ready"}, {"name": "enhancement"}],
		 "state": "OPEN"}
	]`)

	items, err := g.ListIssues([]string{"status:ready"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Number)
	assert.Equal(t, domain.KindIssue, items[0].Kind)
	assert.Equal(t, []string{"status:ready", "enhancement"}, items[0].Labels)

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{
		"issue", "list", "--repo", "acme/widgets", "--state", "open",
		"--json", issueFields, "--limit", "30", "--label", "status:ready",
	}, (*calls)[0].args)
}

func TestPRParsesRefs(t *testing.T) {
	g, _ := stubGH(t, `{"number": 12, "title": "Fix", "body": "",
		"labels": [], "state": "OPEN",
		"headRefName": "agent/issue-7", "baseRefName": "main"}`)

	pr, err := g.PR(12)
	require.NoError(t, err)
	assert.Equal(t, "agent/issue-7", pr.HeadRef)
	assert.Equal(t, "main", pr.BaseRef)
}

func TestCreatePRParsesNumberFromURL(t *testing.T) {
	g, calls := stubGH(t, "https://github.com/acme/widgets/pull/42\n")

	n, err := g.CreatePR("title", "body", "agent/issue-7", "main", []string{"status:reviewing"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Contains(t, (*calls)[0].args, "--head")
	assert.Contains(t, (*calls)[0].args, "agent/issue-7")
	assert.Contains(t, (*calls)[0].args, "--label")
}

func TestUpdateIssueBodySendsJSONStdin(t *testing.T) {
	g, calls := stubGH(t, "{}")

	err := g.UpdateIssueBody(7, "line one\n\"quoted\"")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, `{"body":"line one\n\"quoted\""}`, (*calls)[0].stdin)
	assert.Equal(t, []string{
		"api", "-X", "PATCH", "repos/acme/widgets/issues/7", "--input", "-",
	}, (*calls)[0].args)
}

func TestCommentsParsesTimestamps(t *testing.T) {
	g, calls := stubGH(t, `[
		{"id": 101, "body": "ACK:worker:worker-ab12cd34:1700000000000",
		 "created_at": "2023-11-14T22:13:20Z"}
	]`)

	comments, err := g.Comments(7, 100)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, int64(101), comments[0].ID)
	assert.Equal(t, 2023, comments[0].CreatedAt.Year())
	assert.Contains(t, (*calls)[0].args[1], "per_page=100")
}

func TestCommentUsesPRNounForPullRequests(t *testing.T) {
	g, calls := stubGH(t, "", "")

	require.NoError(t, g.Comment(7, domain.KindIssue, "hello"))
	require.NoError(t, g.Comment(12, domain.KindPullRequest, "hello"))
	assert.Equal(t, "issue", (*calls)[0].args[0])
	assert.Equal(t, "pr", (*calls)[1].args[0])
}

func TestLabelEditArgs(t *testing.T) {
	g, calls := stubGH(t, "", "")

	require.NoError(t, g.AddLabel(7, domain.KindIssue, "status:implementing"))
	require.NoError(t, g.RemoveLabel(7, domain.KindIssue, "status:ready"))
	assert.Equal(t, []string{
		"issue", "edit", "7", "--repo", "acme/widgets", "--add-label", "status:implementing",
	}, (*calls)[0].args)
	assert.Equal(t, []string{
		"issue", "edit", "7", "--repo", "acme/widgets", "--remove-label", "status:ready",
	}, (*calls)[1].args)
}

func TestChecksAggregation(t *testing.T) {
	tests := []struct {
		name string
		json string
		want CheckState
	}{
		{"all green", `[{"name":"ci","state":"SUCCESS"},{"name":"lint","state":"SKIPPED"}]`, CheckSuccess},
		{"one failure wins", `[{"name":"ci","state":"SUCCESS"},{"name":"test","state":"FAILURE"}]`, CheckFailure},
		{"pending check", `[{"name":"ci","state":"IN_PROGRESS"}]`, CheckPending},
		{"cancelled is failure", `[{"name":"ci","state":"CANCELLED"}]`, CheckFailure},
		{"no checks configured", `[]`, CheckSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := stubGH(t, tt.json)
			state, err := g.Checks(12)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestChecksNoChecksErrorIsSuccess(t *testing.T) {
	g := NewGH("acme/widgets", "gh")
	g.run = func(string, ...string) (string, error) {
		return "", errors.New("no checks reported on the 'agent/issue-7' branch")
	}
	state, err := g.Checks(12)
	require.NoError(t, err)
	assert.Equal(t, CheckSuccess, state)
}

func TestMergeMethodFlag(t *testing.T) {
	g, calls := stubGH(t, "")
	require.NoError(t, g.Merge(12, "squash"))
	assert.Contains(t, (*calls)[0].args, "--squash")
	assert.Contains(t, (*calls)[0].args, "--delete-branch")
}

func TestNumberFromURLRejectsGarbage(t *testing.T) {
	_, err := numberFromURL("not a url")
	require.Error(t, err)
}
