package git

import (
	"context"
	"errors"
	"fmt"
)

// PushOptions specifies options for the Push operation.
type PushOptions struct {
	// Remote is the remote to push to.
	//
	// If empty, the default remote for the current branch is used.
	// If the current branch does not have a remote configured,
	// the operation fails.
	Remote string

	// ForceWithLease indicates that a push should overwrite a ref
	// even if the new value is not a descendant of the current value,
	// provided that our knowledge of the current value is up-to-date.
	// The engine sets this on every push it performs:
	// local commits are rewritten on every sync, so a
	// plain fast-forward push would fail even when nothing unexpected
	// changed on the remote.
	ForceWithLease string

	// NoVerify skips the remote's pre-receive/update hooks:
	// the engine's private per-commit branches are
	// not meant to trigger the hooks configured for human-facing
	// branches.
	NoVerify bool

	// Refspec is the refspec to push, in the form
	// "<remote-commit-id>:refs/heads/<branch-name>" for tracked-commit
	// pushes, or empty to push the current branch.
	Refspec string
}

// Push pushes objects and refs to a remote repository. The engine uses
// it to publish a tracked commit's remote commit to its private branch.
func (r *Repository) Push(ctx context.Context, opts PushOptions) error {
	if opts.Remote == "" && opts.Refspec != "" {
		return errors.New("push: refspec specified without a remote")
	}

	args := []string{"push"}
	if opts.NoVerify {
		args = append(args, "--no-verify")
	}
	if lease := opts.ForceWithLease; lease != "" {
		args = append(args, "--force-with-lease="+lease)
	}
	if opts.Remote != "" {
		args = append(args, opts.Remote)
	}
	if opts.Refspec != "" {
		args = append(args, opts.Refspec)
	}

	if err := r.gitCmd(ctx, args...).Run(r.exec); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	return nil
}
