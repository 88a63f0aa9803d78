package engine_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/metadata"
)

// amendFixture gives a local commit on top of mainline, kept reachable as
// "original", and HEAD as what that commit looks like after the user
// amended it: both are children of mainline. The first is tracked; the
// test attaches its tracking metadata to the second directly, the way a
// notes-preserving amend would.
const amendFixture = `
git add file.txt
git commit -q -m 'Add feature file'
git branch original
cp file2.txt file.txt
git add file.txt
git commit -q --amend -m 'Add feature file'
-- file.txt --
line1
-- file2.txt --
line1
line2
`

func TestUpdateLocalBranchHeadFixup(t *testing.T) {
	repo, eng := newFixture(t, amendFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)

	original, err := repo.PeelToCommit(ctx, "original")
	require.NoError(t, err)
	amended, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta1, err := eng.Track(ctx, original, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)

	store := metadata.NewStore(repo)
	require.NoError(t, store.Write(ctx, amended, meta1))

	l, err := eng.Classify(ctx, amended)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, l.Status)

	updated, err := eng.UpdateLocalBranchHead(ctx, l)
	require.NoError(t, err)
	require.NotEqual(t, meta1.RemoteCommit, updated.Metadata.RemoteCommit)

	fixupInfo, err := repo.ReadCommit(ctx, updated.Metadata.RemoteCommit.String())
	require.NoError(t, err)
	require.Equal(t, "Fixup!", fixupInfo.Message)
	require.Equal(t, []git.Hash{meta1.RemoteCommit}, fixupInfo.Parents)

	wantBlob, err := repo.HashAt(ctx, amended.String(), "file.txt")
	require.NoError(t, err)
	gotBlob, err := repo.HashAt(ctx, updated.Metadata.RemoteCommit.String(), "file.txt")
	require.NoError(t, err)
	require.Equal(t, wantBlob, gotBlob)
}

func TestUpdateLocalBranchHeadNoop(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta, err := eng.Track(ctx, head, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)

	l, err := eng.Classify(ctx, head)
	require.NoError(t, err)

	updated, err := eng.UpdateLocalBranchHead(ctx, l)
	require.NoError(t, err)
	require.Equal(t, meta.RemoteCommit, updated.Metadata.RemoteCommit)
}

func TestUpdateLocalBranchHeadRejectsUntracked(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	_, err = eng.UpdateLocalBranchHead(ctx, classify.Commit{Hash: head, Status: classify.Untracked})
	require.ErrorIs(t, err, engine.ErrNotTracked)
}

func TestMergeRemoteHeadFastForward(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	c1, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta1, err := eng.Track(ctx, c1, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)

	// Publish the initial remote branch, the way create would.
	require.NoError(t, repo.Push(ctx, git.PushOptions{
		Remote:  "origin",
		Refspec: meta1.RemoteCommit.String() + ":refs/heads/" + meta1.RemoteBranch,
	}))

	// Simulate a reviewer pushing a fixup commit directly onto the
	// remote branch, on top of R1.
	r1Tree, err := repo.PeelToTree(ctx, meta1.RemoteCommit.String())
	require.NoError(t, err)
	noteBlob, err := repo.WriteObject(ctx, git.BlobType, bytes.NewReader([]byte("reviewer note\n")))
	require.NoError(t, err)
	reviewedTree, err := repo.ApplyToTree(ctx, r1Tree, []git.FileDelta{{
		Path:    "note.txt",
		NewMode: git.RegularMode,
		NewBlob: noteBlob,
	}}, nil)
	require.NoError(t, err)

	sig := &git.Signature{Name: "Reviewer", Email: "reviewer@example.com", Time: time.Unix(1700000000, 0)}
	reviewTip, err := repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:      reviewedTree,
		Message:   "reviewer fixup",
		Parents:   []git.Hash{meta1.RemoteCommit},
		Author:    sig,
		Committer: sig,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Push(ctx, git.PushOptions{
		Remote:         "origin",
		Refspec:        reviewTip.String() + ":refs/heads/" + meta1.RemoteBranch,
		ForceWithLease: "refs/heads/" + meta1.RemoteBranch,
	}))
	require.NoError(t, repo.Fetch(ctx, git.FetchOptions{Remote: "origin"}))

	l, err := eng.Classify(ctx, c1)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, l.Status)

	merged, err := eng.MergeRemoteHead(ctx, l, base)
	require.NoError(t, err)
	require.Equal(t, reviewTip, merged.Metadata.RemoteCommit)
	require.NotEqual(t, c1, merged.Hash)

	blob, err := repo.HashAt(ctx, merged.Hash.String(), "note.txt")
	require.NoError(t, err)
	require.Equal(t, noteBlob, blob)

	reclassified, err := eng.Classify(ctx, merged.Hash)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, reclassified.Status)
	require.Equal(t, reviewTip, reclassified.Metadata.RemoteCommit)
}

func TestMergeRemoteHeadUnchanged(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	c1, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta1, err := eng.Track(ctx, c1, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)
	require.NoError(t, repo.Push(ctx, git.PushOptions{
		Remote:  "origin",
		Refspec: meta1.RemoteCommit.String() + ":refs/heads/" + meta1.RemoteBranch,
	}))
	require.NoError(t, repo.Fetch(ctx, git.FetchOptions{Remote: "origin"}))

	l, err := eng.Classify(ctx, c1)
	require.NoError(t, err)

	unchanged, err := eng.MergeRemoteHead(ctx, l, base)
	require.NoError(t, err)
	require.Equal(t, c1, unchanged.Hash)
	require.Equal(t, meta1, unchanged.Metadata)
}

func TestSyncWithMain(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	c1, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta1, err := eng.Track(ctx, c1, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)

	l, err := eng.Classify(ctx, c1)
	require.NoError(t, err)

	// The remote branch already forks from the current mainline tip, so
	// there is nothing to fold in yet.
	noop, err := eng.SyncWithMain(ctx, l)
	require.NoError(t, err)
	require.Equal(t, meta1, noop.Metadata)

	newMain := advanceMainline(t, ctx, repo, base)
	require.NoError(t, repo.Fetch(ctx, git.FetchOptions{Remote: "origin"}))

	synced, err := eng.SyncWithMain(ctx, l)
	require.NoError(t, err)
	require.Equal(t, c1, synced.Hash, "local commit itself must not move")
	require.NotEqual(t, meta1.RemoteCommit, synced.Metadata.RemoteCommit)

	mergeInfo, err := repo.ReadCommit(ctx, synced.Metadata.RemoteCommit.String())
	require.NoError(t, err)
	require.Equal(t, "Merge", mergeInfo.Message)
	require.Equal(t, []git.Hash{newMain, meta1.RemoteCommit}, mergeInfo.Parents)

	// The remote branch's parent chain now reaches the new mainline, and
	// it carries both the tracked change and the mainline's new file.
	blob, err := repo.HashAt(ctx, synced.Metadata.RemoteCommit.String(), "other.txt")
	require.NoError(t, err)
	require.NotEmpty(t, blob)
}

func TestUntrack(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	_, err = eng.Track(ctx, head, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)

	tracked, err := eng.Classify(ctx, head)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, tracked.Status)

	untracked, err := eng.Untrack(ctx, tracked)
	require.NoError(t, err)
	require.Equal(t, classify.Untracked, untracked.Status)

	reclassified, err := eng.Classify(ctx, head)
	require.NoError(t, err)
	require.Equal(t, classify.Untracked, reclassified.Status)
}
