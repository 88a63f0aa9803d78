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

// UpdateLocalBranchHead propagates the authored diff of a Tracked
// commit onto its remote branch tip as a new "Fixup!" commit.
// The user amended L; this is how that amendment reaches the remote
// branch without disturbing any mainline-sync history already recorded
// there.
func (e *Engine) UpdateLocalBranchHead(ctx context.Context, l classify.Commit) (classify.Commit, error) {
	if l.Status != classify.Tracked {
		return classify.Commit{}, fmt.Errorf("%w: %s", ErrNotTracked, l.Hash.Short())
	}

	mainline, err := e.BaseCommit(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	full, err := e.cherryPick(ctx, l.Hash, mainline, true)
	if err != nil {
		return classify.Commit{}, err
	}

	remoteTree, err := e.repo.PeelToTree(ctx, l.Metadata.RemoteCommit.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve tree of %s: %w", l.Metadata.RemoteCommit.Short(), err)
	}

	delta, err := e.repo.DiffTree(ctx, l.Metadata.RemoteCommit.String(), full.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("diff remote branch tip against cherry-pick: %w", err)
	}
	if len(delta) == 0 {
		return l, nil
	}

	mainDelta, err := e.repo.DiffTree(ctx, l.Metadata.RemoteCommit.String(), mainline.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("diff remote branch tip against mainline: %w", err)
	}
	mainSync := make(map[[2]git.Hash]struct{}, len(mainDelta))
	for _, d := range mainDelta {
		mainSync[d.Key()] = struct{}{}
	}
	inMainSync := func(d git.FileDelta) bool { _, ok := mainSync[d.Key()]; return ok }

	localInfo, err := e.repo.ReadCommit(ctx, l.Hash.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("read commit %s: %w", l.Hash.Short(), err)
	}
	committer, err := e.currentSignature(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	// First application: changes already absorbed by mainline since R
	// was forked. These become a "Sync with main!" commit so that they
	// are never conflated with the user's own fixup.
	syncTree, err := e.repo.ApplyToTree(ctx, remoteTree, delta, inMainSync)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("apply mainline-absorbed deltas: %w", err)
	}
	rPrime := l.Metadata.RemoteCommit
	if syncTree != remoteTree {
		rPrime, err = e.writeCommit(ctx, git.CommitTreeRequest{
			Tree:      syncTree,
			Message:   "Sync with main!",
			Parents:   []git.Hash{l.Metadata.RemoteCommit},
			Author:    &localInfo.Author,
			Committer: &committer,
		})
		if err != nil {
			return classify.Commit{}, fmt.Errorf("write %q commit: %w", "Sync with main!", err)
		}
	}

	// Second application: everything else, i.e. the user's own fixup.
	rPrimeTree, err := e.repo.PeelToTree(ctx, rPrime.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve tree of %s: %w", rPrime.Short(), err)
	}
	fixupTree, err := e.repo.ApplyToTree(ctx, rPrimeTree, delta, func(d git.FileDelta) bool { return !inMainSync(d) })
	if err != nil {
		return classify.Commit{}, fmt.Errorf("apply fixup deltas: %w", err)
	}
	rDoublePrime := rPrime
	if fixupTree != rPrimeTree {
		rDoublePrime, err = e.writeCommit(ctx, git.CommitTreeRequest{
			Tree:      fixupTree,
			Message:   "Fixup!",
			Parents:   []git.Hash{rPrime},
			Author:    &localInfo.Author,
			Committer: &committer,
		})
		if err != nil {
			return classify.Commit{}, fmt.Errorf("write %q commit: %w", "Fixup!", err)
		}
	}

	newMeta := metadata.Metadata{RemoteBranch: l.Metadata.RemoteBranch, RemoteCommit: rDoublePrime}
	if err := e.store.Write(ctx, l.Hash, newMeta); err != nil {
		return classify.Commit{}, fmt.Errorf("persist tracking metadata: %w", err)
	}
	return classify.Commit{Hash: l.Hash, Status: classify.Tracked, Metadata: newMeta}, nil
}

// MergeRemoteHead folds changes pushed directly to the remote branch
// (e.g. reviewer fixups) into L, keeping the remote branch tip recorded
// in L's metadata consistent with what is actually on the remote
// when the remote branch has advanced under it.
// newParent is the commit the rewritten local commit should
// be re-parented onto; the sync walk passes its running parent.
func (e *Engine) MergeRemoteHead(ctx context.Context, l classify.Commit, newParent git.Hash) (classify.Commit, error) {
	if l.Status != classify.Tracked {
		return classify.Commit{}, fmt.Errorf("%w: %s", ErrNotTracked, l.Hash.Short())
	}

	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return classify.Commit{}, err
	}
	fetchedTip, err := e.repo.PeelToCommit(ctx, remote+"/"+l.Metadata.RemoteBranch)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve remote branch %s: %w", l.Metadata.RemoteBranch, err)
	}
	remoteCommit := l.Metadata.RemoteCommit

	mergeBase, err := e.repo.MergeBase(ctx, remoteCommit.String(), fetchedTip.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("merge-base of %s and %s: %w", remoteCommit.Short(), fetchedTip.Short(), err)
	}

	var newRemoteCommit git.Hash
	switch mergeBase {
	case fetchedTip:
		// Local's view is at or ahead of the fetched tip, including the
		// common case where the two are the same commit; nothing to
		// fold in.
		return l, nil
	case remoteCommit:
		newRemoteCommit = fetchedTip
	default:
		parentOfL, branch, err := e.mergeContext(ctx, l.Hash)
		if err != nil {
			return classify.Commit{}, err
		}
		newRemoteCommit, err = e.merge(ctx, remoteCommit, fetchedTip, parentOfL, branch, "Merge")
		if err != nil {
			return classify.Commit{}, err
		}
	}

	return e.rebuildLocalCommit(ctx, l, newRemoteCommit, newParent)
}

// SyncWithMain folds the upstream mainline's advance into L's remote
// branch, so that the branch's parent chain reaches the current
// mainline tip without touching L itself.
func (e *Engine) SyncWithMain(ctx context.Context, l classify.Commit) (classify.Commit, error) {
	if l.Status != classify.Tracked {
		return classify.Commit{}, fmt.Errorf("%w: %s", ErrNotTracked, l.Hash.Short())
	}

	mainline, err := e.BaseCommit(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	mergeBase, err := e.repo.MergeBase(ctx, l.Metadata.RemoteCommit.String(), l.Hash.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("merge-base of %s and %s: %w", l.Metadata.RemoteCommit.Short(), l.Hash.Short(), err)
	}
	if mergeBase == mainline || mergeBase == l.Hash {
		return l, nil
	}

	parentOfL, branch, err := e.mergeContext(ctx, l.Hash)
	if err != nil {
		return classify.Commit{}, err
	}
	newRemoteCommit, err := e.merge(ctx, mainline, l.Metadata.RemoteCommit, parentOfL, branch, "Merge")
	if err != nil {
		return classify.Commit{}, err
	}

	newMeta := metadata.Metadata{RemoteBranch: l.Metadata.RemoteBranch, RemoteCommit: newRemoteCommit}
	if err := e.store.Write(ctx, l.Hash, newMeta); err != nil {
		return classify.Commit{}, fmt.Errorf("persist tracking metadata: %w", err)
	}
	return classify.Commit{Hash: l.Hash, Status: classify.Tracked, Metadata: newMeta}, nil
}

// Untrack removes L's tracking metadata and returns it re-classified as
// Untracked. The remote branch itself is left alone: deleting
// it is out of scope.
func (e *Engine) Untrack(ctx context.Context, l classify.Commit) (classify.Commit, error) {
	if err := e.store.Remove(ctx, l.Hash); err != nil {
		return classify.Commit{}, fmt.Errorf("remove tracking metadata: %w", err)
	}
	return classify.Commit{Hash: l.Hash, Status: classify.Untracked}, nil
}

// rebuildLocalCommit applies the remote branch's net change against
// mainline onto newParent, writing a new local commit that carries L's
// original author and message, and updates tracking metadata to point
// at newRemoteCommit. Shared by the two MergeRemoteHead outcomes that
// produce a new remote commit (fast-forward and three-way merge).
func (e *Engine) rebuildLocalCommit(ctx context.Context, l classify.Commit, newRemoteCommit, newParent git.Hash) (classify.Commit, error) {
	mainline, err := e.BaseCommit(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	delta, err := e.repo.DiffTree(ctx, mainline.String(), newRemoteCommit.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("diff mainline against remote branch tip: %w", err)
	}

	parentTree, err := e.repo.PeelToTree(ctx, newParent.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("resolve tree of %s: %w", newParent.Short(), err)
	}
	newTree, err := e.repo.ApplyToTree(ctx, parentTree, delta, nil)
	if err != nil {
		return classify.Commit{}, fmt.Errorf("apply remote branch delta onto new parent: %w", err)
	}

	localInfo, err := e.repo.ReadCommit(ctx, l.Hash.String())
	if err != nil {
		return classify.Commit{}, fmt.Errorf("read commit %s: %w", l.Hash.Short(), err)
	}
	committer, err := e.currentSignature(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	newLocal, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      newTree,
		Message:   localInfo.Message,
		Parents:   []git.Hash{newParent},
		Author:    &localInfo.Author,
		Committer: &committer,
	})
	if err != nil {
		return classify.Commit{}, fmt.Errorf("write reconciled local commit: %w", err)
	}

	newMeta := metadata.Metadata{RemoteBranch: l.Metadata.RemoteBranch, RemoteCommit: newRemoteCommit}
	if err := e.store.Write(ctx, newLocal, newMeta); err != nil {
		return classify.Commit{}, fmt.Errorf("persist tracking metadata: %w", err)
	}
	return classify.Commit{Hash: newLocal, Status: classify.Tracked, Metadata: newMeta}, nil
}

// mergeContext captures the two pieces of state that a conflicted merge
// needs to record in the sync-state journal but that become
// unrecoverable once HEAD is detached: L's parent, and the name of the
// local branch currently checked out.
func (e *Engine) mergeContext(ctx context.Context, l git.Hash) (parentOfL git.Hash, branch string, err error) {
	info, err := e.repo.ReadCommit(ctx, l.String())
	if err != nil {
		return "", "", fmt.Errorf("read commit %s: %w", l.Short(), err)
	}
	if len(info.Parents) == 0 {
		return "", "", fmt.Errorf("commit %s has no parent", l.Short())
	}

	branch, err = e.mainBranch(ctx)
	if err != nil {
		return "", "", err
	}

	return info.Parents[0], branch, nil
}

// merge three-way merges ours and theirs and commits the result
// with the given message, author and committer both set to the current
// signature (there is no single "original author" for a merge between
// two branch tips). If the merge conflicts, it runs the
// conflict-surfacing protocol: checks out and detaches HEAD at
// ours, starts an interactive merge of theirs so the user sees the
// conflict markers, writes the sync-state journal, and returns
// [*MergeConflictError].
func (e *Engine) merge(ctx context.Context, ours, theirs, parentOfL git.Hash, branch, message string) (git.Hash, error) {
	tree, err := e.repo.MergeTree(ctx, git.MergeTreeRequest{
		Branch1: ours.String(),
		Branch2: theirs.String(),
	})
	if err != nil {
		var conflict *git.MergeTreeConflictError
		if !errors.As(err, &conflict) {
			return "", fmt.Errorf("merge %s and %s: %w", ours.Short(), theirs.Short(), err)
		}

		if err := e.repo.DetachHead(ctx, ours.String()); err != nil {
			return "", fmt.Errorf("checkout %s: %w", ours.Short(), err)
		}
		if err := e.repo.StartInteractiveMerge(ctx, theirs.String()); err != nil {
			return "", fmt.Errorf("start interactive merge of %s: %w", theirs.Short(), err)
		}

		rec := journal.Record{
			MainCommitID:       ours,
			RemoteCommitID:     theirs,
			MainCommitParentID: parentOfL,
			MainBranchName:     branch,
		}
		if err := journal.Write(e.repo.Root(), rec); err != nil {
			return "", fmt.Errorf("write sync-state journal: %w", err)
		}

		return "", &MergeConflictError{Local: ours, Remote: theirs, Program: e.program}
	}

	sig, err := e.currentSignature(ctx)
	if err != nil {
		return "", err
	}

	commit, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      tree,
		Message:   message,
		Parents:   []git.Hash{ours, theirs},
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		return "", fmt.Errorf("write merge commit: %w", err)
	}
	return commit, nil
}
