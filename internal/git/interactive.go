package git

import (
	"context"
	"fmt"
)

// StartInteractiveMerge begins an ordinary, working-tree-visible merge of
// theirs into HEAD and leaves it uncommitted, conflict markers and all,
// for the user to resolve by hand. This is the one operation in this
// package that merges in the workdir and index: the
// conflict-surfacing step, run immediately after the
// caller has already checked out and detached HEAD at the "ours" tree.
//
// A non-nil, non-conflict error here means the merge could not even be
// started (e.g. theirs does not exist). A conflicted merge is the
// expected outcome, not an error: Git exits non-zero for it, so this
// method swallows that specific case and lets the caller write the
// sync-state journal record regardless.
func (r *Repository) StartInteractiveMerge(ctx context.Context, theirs string) error {
	err := r.gitCmd(ctx, "merge", "--no-ff", "--no-commit", theirs).Run(r.exec)
	if err == nil {
		return nil
	}

	// A conflicted merge leaves MERGE_HEAD behind; that's how we tell
	// "conflicts to resolve" apart from "could not start the merge".
	if _, mergeErr := r.revParse(ctx, "MERGE_HEAD"); mergeErr == nil {
		return nil
	}

	return fmt.Errorf("git merge: %w", err)
}
