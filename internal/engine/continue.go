package engine

import (
	"context"
	"fmt"

	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/journal"
	"go.ubr.dev/ubr/internal/metadata"
)

// ContinueAfterConflict resumes a Tracked-commit reconciliation after
// the user has resolved the conflict markers left by the
// conflict-surfacing protocol and staged their resolution. It
// reads the sync-state journal, treats the staged index as the
// user-authored merge, and rebuilds the local commit exactly as
// MergeRemoteHead would have if the merge had not conflicted.
//
// HEAD is left detached on return; Sync re-attaches it
// to the branch named in the journal once the rest of the walk
// completes.
func (e *Engine) ContinueAfterConflict(ctx context.Context) (classify.Commit, error) {
	rec, err := journal.Read(e.repo.Root())
	if err != nil {
		return classify.Commit{}, err
	}

	resolvedTree, err := e.repo.WriteIndexTree(ctx)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolved tree has unmerged entries: %w", err)
	}

	sig, err := e.currentSignature(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	mergeCommit, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      resolvedTree,
		Message:   "Merge",
		Parents:   []git.Hash{rec.MainCommitID, rec.RemoteCommitID},
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		return classify.Commit{}, fmt.Errorf("write merge commit: %w", err)
	}

	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return classify.Commit{}, err
	}
	mainline, err := e.repo.PeelToCommit(ctx, remote+"/"+rec.MainBranchName)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve upstream mainline of %s: %w", rec.MainBranchName, err)
	}

	l, err := e.findCommitByParent(ctx, rec.MainBranchName, mainline, rec.MainCommitParentID)
	if err != nil {
		return classify.Commit{}, err
	}

	localMeta, err := e.class.Classify(ctx, l)
	if err != nil {
		return classify.Commit{}, err
	}
	if localMeta.Status != classify.Tracked {
		return classify.Commit{}, fmt.Errorf("%w: %s", ErrNotTracked, l.Short())
	}

	delta, err := e.repo.DiffTree(ctx, mainline.String(), mergeCommit.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("diff mainline against merge commit: %w", err)
	}

	parentTree, err := e.repo.PeelToTree(ctx, rec.MainCommitParentID.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve tree of %s: %w", rec.MainCommitParentID.Short(), err)
	}
	newTree, err := e.repo.ApplyToTree(ctx, parentTree, delta, nil)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("apply merge delta onto %s: %w", rec.MainCommitParentID.Short(), err)
	}

	localInfo, err := e.repo.ReadCommit(ctx, l.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("read commit %s: %w", l.Short(), err)
	}

	newLocal, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      newTree,
		Message:   localInfo.Message,
		Parents:   []git.Hash{rec.MainCommitParentID},
		Author:    &localInfo.Author,
		Committer: &sig,
	})
	if err != nil {
		return classify.Commit{}, fmt.Errorf("write reconciled local commit: %w", err)
	}

	newMeta := metadata.Metadata{RemoteBranch: localMeta.Metadata.RemoteBranch, RemoteCommit: mergeCommit}
	if err := e.store.Write(ctx, newLocal, newMeta); err != nil {
		return classify.Commit{}, fmt.Errorf("persist tracking metadata: %w", err)
	}

	if err := journal.Delete(e.repo.Root()); err != nil {
		return classify.Commit{}, fmt.Errorf("delete sync-state journal: %w", err)
	}

	return classify.Commit{Hash: newLocal, Status: classify.Tracked, Metadata: newMeta}, nil
}

// findCommitByParent walks the commits reachable from branch down to
// (but not including) mainline and returns the one whose first parent
// is parent. Because the domain keeps a single linear chain of local
// commits above mainline, this uniquely identifies L: the local branch
// ref itself is never moved until the orchestrator's final step, so L
// is still exactly where it was when the conflict interrupted the sync.
func (e *Engine) findCommitByParent(ctx context.Context, branch string, mainline, parent git.Hash) (git.Hash, error) {
	list, err := e.repo.ListCommits(ctx, branch, mainline.String())
	if err != nil {
		return "", fmt.Errorf("list commits on %s: %w", branch, err)
	}

	for list.Next() {
		commit := list.Commit()
		info, err := e.repo.ReadCommit(ctx, commit.String())
		if err != nil {
			return "", fmt.Errorf("read commit %s: %w", commit.Short(), err)
		}
		if len(info.Parents) > 0 && info.Parents[0] == parent {
			return commit, nil
		}
	}
	if err := list.Err(); err != nil {
		return "", fmt.Errorf("walk commits on %s: %w", branch, err)
	}

	return "", fmt.Errorf("no commit on %s has parent %s", branch, parent.Short())
}
