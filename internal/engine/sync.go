package engine

import (
	"context"
	"errors"
	"fmt"

	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/journal"
	"go.ubr.dev/ubr/internal/metadata"
)

// ErrContinueWithRevspec indicates that sync was invoked with both
// --continue and an explicit revspec, which are mutually exclusive.
var ErrContinueWithRevspec = errors.New("--continue does not take a revspec")

// SyncOptions configures Sync.
type SyncOptions struct {
	// Continue resumes an in-progress sync from the sync-state
	// journal.
	Continue bool

	// Revspec, if non-empty, restricts the sync to a single Tracked
	// commit instead of walking every unpushed commit. Mutually
	// exclusive with Continue.
	Revspec string

	// DryRun skips every push; local object-store writes still occur,
	// since they are safely orphanable.
	DryRun bool
}

// SyncResult reports what a sync did: where the local branch ended up,
// and how much work the walk covered.
type SyncResult struct {
	// Head is the commit the local branch now points at.
	Head git.Hash

	// Walked counts the unpushed commits the sync processed, Tracked
	// and Untracked alike.
	Walked int

	// Pushed counts the remote branches actually pushed; zero on a dry
	// run.
	Pushed int
}

// Sync implements the sync command: it fetches, then walks the
// relevant unpushed commits oldest-first, rebasing Untracked commits
// forward and reconciling Tracked ones against both the upstream
// mainline and their remote branch, before moving the local branch to
// the reconciled tip.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if opts.Continue && opts.Revspec != "" {
		return SyncResult{}, ErrContinueWithRevspec
	}

	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	e.log.Debug("Fetching", "remote", remote)
	if err := e.repo.Fetch(ctx, git.FetchOptions{Remote: remote}); err != nil {
		return SyncResult{}, fmt.Errorf("fetch: %w", err)
	}

	switch {
	case opts.Continue:
		return e.syncContinue(ctx, opts)
	case opts.Revspec != "":
		return e.syncOne(ctx, opts)
	default:
		return e.syncAll(ctx, opts)
	}
}

// syncContinue resumes a sync that stopped mid-walk on a merge
// conflict: it finishes the interrupted reconciliation, then walks and
// processes whatever commits were left above the one that conflicted.
func (e *Engine) syncContinue(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if !journal.Exists(e.repo.Root()) {
		return SyncResult{}, journal.ErrNotExist
	}

	rec, err := journal.Read(e.repo.Root())
	if err != nil {
		return SyncResult{}, err
	}

	// HEAD is detached at the conflicted merge; the journal, not HEAD,
	// knows which trunk branch this sync belongs to.
	e.branch = rec.MainBranchName

	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	mainline, err := e.repo.PeelToCommit(ctx, remote+"/"+rec.MainBranchName)
	if err != nil {
		return SyncResult{}, fmt.Errorf("resolve upstream mainline of %s: %w", rec.MainBranchName, err)
	}
	originalLocal, err := e.findCommitByParent(ctx, rec.MainBranchName, mainline, rec.MainCommitParentID)
	if err != nil {
		return SyncResult{}, err
	}

	resumed, err := e.ContinueAfterConflict(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{Walked: 1}
	if !opts.DryRun {
		if err := e.pushTrackedCommit(ctx, resumed.Metadata); err != nil {
			return SyncResult{}, err
		}
		res.Pushed++
	}

	remaining, err := e.repo.ListCommits(ctx, rec.MainBranchName, originalLocal.String())
	if err != nil {
		return SyncResult{}, fmt.Errorf("list remaining commits: %w", err)
	}
	var commits []git.Hash
	for remaining.Next() {
		commits = append(commits, remaining.Commit())
	}
	if err := remaining.Err(); err != nil {
		return SyncResult{}, fmt.Errorf("walk remaining commits: %w", err)
	}

	parentCommit, err := e.walkCommits(ctx, commits, resumed.Hash, opts.DryRun, &res)
	if err != nil {
		return SyncResult{}, err
	}

	if err := e.finishSync(ctx, rec.MainBranchName, parentCommit); err != nil {
		return SyncResult{}, err
	}
	res.Head = parentCommit
	return res, nil
}

// syncOne processes a single Tracked commit named by revspec, leaving
// the rest of the stack alone.
func (e *Engine) syncOne(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	branch, err := e.mainBranch(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	base, err := e.BaseCommit(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	commit, err := e.ResolveUnpushed(ctx, opts.Revspec, base)
	if err != nil {
		return SyncResult{}, err
	}

	l, err := e.class.Classify(ctx, commit)
	if err != nil {
		return SyncResult{}, err
	}
	if l.Status != classify.Tracked {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrNotTracked, commit.Short())
	}

	info, err := e.repo.ReadCommit(ctx, commit.String())
	if err != nil {
		return SyncResult{}, fmt.Errorf("read commit %s: %w", commit.Short(), err)
	}
	if len(info.Parents) == 0 {
		return SyncResult{}, fmt.Errorf("commit %s has no parent", commit.Short())
	}

	res := SyncResult{Walked: 1}
	parentCommit, err := e.reconcileTracked(ctx, l, info.Parents[0], opts.DryRun, &res)
	if err != nil {
		return SyncResult{}, err
	}

	if err := e.finishSync(ctx, branch, parentCommit); err != nil {
		return SyncResult{}, err
	}
	res.Head = parentCommit
	return res, nil
}

// syncAll walks every unpushed commit on the current branch, oldest
// first.
func (e *Engine) syncAll(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	branch, err := e.mainBranch(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	mainline, err := e.BaseCommit(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	commits, err := e.WalkUnpushed(ctx, mainline)
	if err != nil {
		return SyncResult{}, err
	}

	var res SyncResult
	parentCommit, err := e.walkCommits(ctx, commits, mainline, opts.DryRun, &res)
	if err != nil {
		return SyncResult{}, err
	}

	if err := e.finishSync(ctx, branch, parentCommit); err != nil {
		return SyncResult{}, err
	}
	res.Head = parentCommit
	return res, nil
}

// walkCommits processes commits in order, classifying each one and
// dispatching it to the appropriate operation, advancing parentCommit
// and accumulating counts into res as it goes.
func (e *Engine) walkCommits(ctx context.Context, commits []git.Hash, parentCommit git.Hash, dryRun bool, res *SyncResult) (git.Hash, error) {
	for _, commit := range commits {
		c, err := e.class.Classify(ctx, commit)
		if err != nil {
			return "", err
		}
		res.Walked++

		if c.Status == classify.Untracked {
			e.log.Debug("Rebasing untracked commit", "commit", commit)
			newCommit, err := e.Rebase(ctx, commit, parentCommit)
			if err != nil {
				return "", err
			}
			parentCommit = newCommit
			continue
		}

		e.log.Debug("Reconciling tracked commit", "commit", commit, "branch", c.Metadata.RemoteBranch)
		parentCommit, err = e.reconcileTracked(ctx, c, parentCommit, dryRun, res)
		if err != nil {
			return "", err
		}
	}
	return parentCommit, nil
}

// reconcileTracked runs the two-step Tracked-commit dispatch
// (UpdateLocalBranchHead then MergeRemoteHead), pushes the
// result unless dryRun, and returns the new parent commit for the next
// step of the walk.
func (e *Engine) reconcileTracked(ctx context.Context, c classify.Commit, newParent git.Hash, dryRun bool, res *SyncResult) (git.Hash, error) {
	updated, err := e.UpdateLocalBranchHead(ctx, c)
	if err != nil {
		return "", err
	}

	merged, err := e.MergeRemoteHead(ctx, updated, newParent)
	if err != nil {
		return "", err
	}

	if dryRun {
		e.log.Debug("Dry run: not pushing", "branch", merged.Metadata.RemoteBranch)
	} else {
		if err := e.pushTrackedCommit(ctx, merged.Metadata); err != nil {
			return "", err
		}
		res.Pushed++
	}

	return merged.Hash, nil
}

// pushTrackedCommit publishes a Tracked commit's remote commit to its
// private remote branch: refspec
// "<remote-commit-id>:refs/heads/<branch-name>", force-with-lease,
// no-verify.
func (e *Engine) pushTrackedCommit(ctx context.Context, m metadata.Metadata) error {
	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return err
	}

	refspec := m.RemoteCommit.String() + ":refs/heads/" + m.RemoteBranch
	err = e.repo.Push(ctx, git.PushOptions{
		Remote:         remote,
		Refspec:        refspec,
		ForceWithLease: "refs/heads/" + m.RemoteBranch,
		NoVerify:       true,
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", m.RemoteBranch, err)
	}
	return nil
}

// finishSync moves branch to target and re-attaches HEAD to it:
// HEAD detached, branch set, HEAD re-attached.
func (e *Engine) finishSync(ctx context.Context, branch string, target git.Hash) error {
	if err := e.repo.DetachHead(ctx, ""); err != nil {
		return fmt.Errorf("detach HEAD: %w", err)
	}
	if err := e.repo.SetBranchHead(ctx, branch, target); err != nil {
		return fmt.Errorf("move %s to %s: %w", branch, target.Short(), err)
	}
	if err := e.repo.Checkout(ctx, branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}
