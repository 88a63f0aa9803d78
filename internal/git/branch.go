package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDetachedHead indicates that the repository is
// unexpectedly in detached HEAD state. The engine requires a named
// branch checked out at the start of every command.
var ErrDetachedHead = errors.New("in detached HEAD state")

// CurrentBranch reports the current branch name.
// It returns [ErrDetachedHead] if the repository is in detached HEAD state.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.gitCmd(ctx, "branch", "--show-current").
		OutputString(r.exec)
	if err != nil {
		return "", fmt.Errorf("git branch --show-current: %w", err)
	}
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		// Per man git-branch, --show-current returns an empty string
		// if the repository is in detached HEAD state.
		return "", ErrDetachedHead
	}
	return name, nil
}

// DetachHead detaches HEAD from the current branch. With an empty
// commitish it stays at the same commit; otherwise it checks out
// commitish detached. Used by the conflict-surfacing protocol
// (checkout_detached) to put the "ours" tree in the working directory
// ahead of an interactive merge.
func (r *Repository) DetachHead(ctx context.Context, commitish string) error {
	args := []string{"checkout", "--detach"}
	if len(commitish) > 0 {
		args = append(args, commitish)
	}
	if err := r.gitCmd(ctx, args...).Run(r.exec); err != nil {
		return fmt.Errorf("git checkout --detach: %w", err)
	}
	return nil
}

// Checkout switches to the specified branch, re-attaching HEAD to it.
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	if err := r.gitCmd(ctx, "checkout", branch).Run(r.exec); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}
	return nil
}

// SetBranchHead force-moves a local branch ref to point at commit, without
// requiring it to be checked out. The sync orchestrator uses it to
// advance the trunk branch to the reconciled tip, and the push helper
// command uses it to move a user-named branch to HEAD.
func (r *Repository) SetBranchHead(ctx context.Context, branch string, commit Hash) error {
	if err := r.SetRef(ctx, SetRefRequest{
		Ref:  "refs/heads/" + branch,
		Hash: commit,
	}); err != nil {
		return fmt.Errorf("set branch %v: %w", branch, err)
	}
	return nil
}
