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
)

// stackFixture gives a tracked commit (c1, adding file.txt) with an
// untracked commit (c2, HEAD) stacked on top of it, the shape the "sync
// walks a mixed stack" scenarios need.
const stackFixture = `
git add file.txt
git commit -q -m 'Add feature file'
git commit -q --allow-empty -m 'untracked work'
-- file.txt --
line1
`

// advanceMainline pushes a new commit directly onto the remote's main
// branch, simulating another PR landing while this stack is in flight.
// It returns the new mainline tip.
func advanceMainline(t *testing.T, ctx context.Context, repo *git.Repository, base git.Hash) git.Hash {
	t.Helper()

	baseTree, err := repo.PeelToTree(ctx, base.String())
	require.NoError(t, err)
	blob, err := repo.WriteObject(ctx, git.BlobType, bytes.NewReader([]byte("other\n")))
	require.NoError(t, err)
	newTree, err := repo.ApplyToTree(ctx, baseTree, []git.FileDelta{{
		Path:    "other.txt",
		NewMode: git.RegularMode,
		NewBlob: blob,
	}}, nil)
	require.NoError(t, err)

	sig := &git.Signature{Name: "Other Author", Email: "other@example.com", Time: time.Unix(1700000100, 0)}
	newMain, err := repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:      newTree,
		Message:   "other change",
		Parents:   []git.Hash{base},
		Author:    sig,
		Committer: sig,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Push(ctx, git.PushOptions{Remote: "origin", Refspec: newMain.String() + ":refs/heads/main"}))
	return newMain
}

func TestSyncWalksMixedStack(t *testing.T) {
	repo, eng := newFixture(t, stackFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	c1, err := repo.PeelToCommit(ctx, "HEAD^")
	require.NoError(t, err)
	c2, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	c, err := eng.Create(ctx, engine.CreateOptions{Revspec: "HEAD^"})
	require.NoError(t, err)
	require.Equal(t, c1, c.Hash)

	newMain := advanceMainline(t, ctx, repo, base)

	result, err := eng.Sync(ctx, engine.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Walked)
	require.Equal(t, 1, result.Pushed)

	// c1's hash never changes: only its remote branch tip and tracking
	// metadata move. c2 is untracked, so it gets rebased onto a new
	// commit.
	require.NotEqual(t, c2, result.Head)

	headInfo, err := repo.ReadCommit(ctx, result.Head.String())
	require.NoError(t, err)
	require.Equal(t, []git.Hash{c1}, headInfo.Parents)
	require.Equal(t, "untracked work", headInfo.Message)

	reclassified, err := eng.Classify(ctx, c1)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, reclassified.Status)
	require.NotEqual(t, c.Metadata.RemoteCommit, reclassified.Metadata.RemoteCommit)

	syncInfo, err := repo.ReadCommit(ctx, reclassified.Metadata.RemoteCommit.String())
	require.NoError(t, err)
	require.Equal(t, "Sync with main!", syncInfo.Message)
	require.Equal(t, []git.Hash{c.Metadata.RemoteCommit}, syncInfo.Parents)

	otherBlob, err := repo.HashAt(ctx, reclassified.Metadata.RemoteCommit.String(), "other.txt")
	require.NoError(t, err)
	require.NotEmpty(t, otherBlob)

	remoteTip, err := repo.PeelToCommit(ctx, "origin/"+reclassified.Metadata.RemoteBranch)
	require.NoError(t, err)
	require.Equal(t, reclassified.Metadata.RemoteCommit, remoteTip)

	localBranchTip, err := repo.PeelToCommit(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, result.Head, localBranchTip)

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	mainlineTip, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	require.Equal(t, newMain, mainlineTip)
}

func TestSyncOneRestrictsToSingleCommit(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	c, err := eng.Create(ctx, engine.CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, head, c.Hash)

	// Nothing changed upstream, so reconciling this single commit is a
	// no-op: same local hash, same remote commit.
	result, err := eng.Sync(ctx, engine.SyncOptions{Revspec: head.String()})
	require.NoError(t, err)
	require.Equal(t, head, result.Head)
	require.Equal(t, 1, result.Walked)
	require.Equal(t, 1, result.Pushed)

	reclassified, err := eng.Classify(ctx, head)
	require.NoError(t, err)
	require.Equal(t, c.Metadata, reclassified.Metadata)
}

func TestSyncContinueRequiresJournal(t *testing.T) {
	_, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	_, err := eng.Sync(ctx, engine.SyncOptions{Continue: true})
	require.Error(t, err)
}

func TestSyncRejectsContinueWithRevspec(t *testing.T) {
	_, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	_, err := eng.Sync(ctx, engine.SyncOptions{Continue: true, Revspec: "HEAD"})
	require.ErrorIs(t, err, engine.ErrContinueWithRevspec)
}
