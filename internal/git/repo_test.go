package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	_, err := runGit(dir, "init", "-b", "main")
	require.NoError(t, err)
	_, err = runGit(dir, "config", "user.name", "tester")
	require.NoError(t, err)
	_, err = runGit(dir, "config", "user.email", "tester@example.com")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	_, err = runGit(dir, "add", ".")
	require.NoError(t, err)
	_, err = runGit(dir, "commit", "-m", "initial")
	require.NoError(t, err)

	r, err := Open(dir)
	require.NoError(t, err)
	return r
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "auto/issue-42", BranchName(42))
}

func TestCheckoutBranchCreatesAndSwitches(t *testing.T) {
	r := initRepo(t)

	require.NoError(t, r.CheckoutBranch("auto/issue-7"))
	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "auto/issue-7", branch)

	// A second checkout of the same branch must not fail.
	require.NoError(t, r.CheckoutBranch("auto/issue-7"))
}

func TestCommitAll(t *testing.T) {
	r := initRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(r.WorkDir(), "impl.go"), []byte("package impl\n"), 0o644))
	committed, err := r.CommitAll("add implementation")
	require.NoError(t, err)
	assert.True(t, committed)

	dirty, err := r.HasUncommittedChanges()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestCommitAllCleanWorktreeIsNoOp(t *testing.T) {
	r := initRepo(t)

	committed, err := r.CommitAll("nothing")
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestOpenRejectsNonRepo(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestCloneOpensExistingCheckout(t *testing.T) {
	r := initRepo(t)

	again, err := Clone("https://example.invalid/repo.git", r.WorkDir())
	require.NoError(t, err)
	assert.Equal(t, r.WorkDir(), again.WorkDir())
}
