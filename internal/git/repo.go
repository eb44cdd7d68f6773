// Package git manages per-item workspaces: cloning the target repository,
// branching, committing generated changes, and pushing them back. Local
// operations run through go-git; network operations shell out to the git
// binary so the ambient credential helpers apply.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/workhive/workhive/internal/debug"
)

// Repo wraps one checked-out workspace.
type Repo struct {
	repo    *gogit.Repository
	workDir string
}

// BranchName returns the canonical work branch for an issue.
func BranchName(issue int) string {
	return fmt.Sprintf("auto/issue-%d", issue)
}

// Clone clones the repository into dir, or opens it when dir already holds
// a clone from an earlier run.
func Clone(url, dir string) (*Repo, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return Open(dir)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	if out, err := runGit("", "clone", url, dir); err != nil {
		return nil, fmt.Errorf("clone %s: %w (%s)", url, err, out)
	}
	return Open(dir)
}

// Open opens an existing workspace.
func Open(workDir string) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(workDir, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open git repo at %s: %w", workDir, err)
	}
	return &Repo{repo: r, workDir: workDir}, nil
}

// WorkDir returns the workspace path.
func (r *Repo) WorkDir() string { return r.workDir }

// CheckoutBranch creates the branch if needed and switches to it.
func (r *Repo) CheckoutBranch(branch string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	ref := plumbing.NewBranchReferenceName(branch)
	if _, err := r.repo.Reference(ref, true); err == nil {
		if err := wt.Checkout(&gogit.CheckoutOptions{Branch: ref}); err != nil {
			return fmt.Errorf("checkout branch %s: %w", branch, err)
		}
		return nil
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Branch: ref, Create: true}); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

// CurrentBranch returns the name of the checked-out branch.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// CommitAll stages every change in the worktree and commits it. It reports
// whether a commit was created; a clean worktree is a no-op, not an error.
func (r *Repo) CommitAll(message string) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("get status: %w", err)
	}
	if status.IsClean() {
		debug.Logf("git: nothing to commit in %s", r.workDir)
		return false, nil
	}
	if _, err := wt.Commit(message, &gogit.CommitOptions{Author: r.commitSignature()}); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// HasUncommittedChanges reports whether the worktree is dirty.
func (r *Repo) HasUncommittedChanges() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return !status.IsClean(), nil
}

// Push publishes the branch to origin. force overwrites the remote branch,
// used when a retry rewrites an earlier attempt.
func (r *Repo) Push(branch string, force bool) error {
	args := []string{"push", "--set-upstream", "origin", branch}
	if force {
		args = append(args, "--force")
	}
	if out, err := runGit(r.workDir, args...); err != nil {
		return fmt.Errorf("push %s: %w (%s)", branch, err, out)
	}
	return nil
}

// Pull updates the checked-out branch from origin.
func (r *Repo) Pull(branch string) error {
	if out, err := runGit(r.workDir, "pull", "origin", branch); err != nil {
		return fmt.Errorf("pull %s: %w (%s)", branch, err, out)
	}
	return nil
}

// commitSignature reads user identity from the merged git config, falling
// back to the agent defaults.
func (r *Repo) commitSignature() *object.Signature {
	name := "workhive"
	email := "workhive@localhost"
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

func runGit(dir string, args ...string) (string, error) {
	debug.Logf("git %s", strings.Join(args, " "))
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
