package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/journal"
	"go.ubr.dev/ubr/internal/metadata"
)

// conflictFixture gives a tracked commit (c1) and its amended successor
// (c2, a sibling of c1 on mainline, reached as HEAD; c1 stays reachable
// as "original"), both touching the same line of file.txt so that an
// independent remote edit of that line can be made to conflict
// deterministically.
const conflictFixture = `
git add file.txt
git commit -q -m 'Add feature file'
git branch original
cp file2.txt file.txt
git add file.txt
git commit -q --amend -m 'Add feature file'
-- file.txt --
line1
-- file2.txt --
conflict-local
`

func TestMergeRemoteHeadConflictAndContinue(t *testing.T) {
	repo, eng := newFixture(t, conflictFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	c1, err := repo.PeelToCommit(ctx, "original")
	require.NoError(t, err)
	c2, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta1, err := eng.Track(ctx, c1, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)
	require.NoError(t, repo.Push(ctx, git.PushOptions{
		Remote:  "origin",
		Refspec: meta1.RemoteCommit.String() + ":refs/heads/" + meta1.RemoteBranch,
	}))

	// c2 stands in for c1 after the user amended it; attach the same
	// tracking metadata the way a notes-preserving amend would.
	require.NoError(t, metadata.NewStore(repo).Write(ctx, c2, meta1))

	l, err := eng.Classify(ctx, c2)
	require.NoError(t, err)

	updated, err := eng.UpdateLocalBranchHead(ctx, l)
	require.NoError(t, err)
	require.NotEqual(t, meta1.RemoteCommit, updated.Metadata.RemoteCommit)

	// Simulate an independent, conflicting edit pushed straight to the
	// remote branch on top of R1 (not R1', the fixup above).
	r1Tree, err := repo.PeelToTree(ctx, meta1.RemoteCommit.String())
	require.NoError(t, err)
	remoteBlob, err := repo.WriteObject(ctx, git.BlobType, bytes.NewReader([]byte("conflict-remote\n")))
	require.NoError(t, err)
	remoteTree, err := repo.ApplyToTree(ctx, r1Tree, []git.FileDelta{{
		Path:    "file.txt",
		NewMode: git.RegularMode,
		NewBlob: remoteBlob,
	}}, nil)
	require.NoError(t, err)

	sig := &git.Signature{Name: "Reviewer", Email: "reviewer@example.com", Time: time.Unix(1700000000, 0)}
	remoteTip, err := repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:      remoteTree,
		Message:   "remote edit",
		Parents:   []git.Hash{meta1.RemoteCommit},
		Author:    sig,
		Committer: sig,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Push(ctx, git.PushOptions{
		Remote:         "origin",
		Refspec:        remoteTip.String() + ":refs/heads/" + meta1.RemoteBranch,
		ForceWithLease: "refs/heads/" + meta1.RemoteBranch,
	}))
	require.NoError(t, repo.Fetch(ctx, git.FetchOptions{Remote: "origin"}))

	_, err = eng.MergeRemoteHead(ctx, updated, base)
	require.Error(t, err)
	var conflictErr *engine.MergeConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Equal(t, updated.Metadata.RemoteCommit, conflictErr.Local)
	require.Equal(t, remoteTip, conflictErr.Remote)

	// The conflict-surfacing protocol left HEAD detached with markers in
	// the working tree, and a journal recording how to resume.
	_, err = repo.CurrentBranch(ctx)
	require.ErrorIs(t, err, git.ErrDetachedHead)
	require.True(t, journal.Exists(repo.Root()))

	// The user resolves the conflict and stages it.
	require.NoError(t, os.WriteFile(filepath.Join(repo.Root(), "file.txt"), []byte("resolved\n"), 0o644))
	addCmd := exec.CommandContext(ctx, "git", "-C", repo.Root(), "add", "file.txt")
	require.NoError(t, addCmd.Run())

	resumed, err := eng.ContinueAfterConflict(ctx)
	require.NoError(t, err)
	require.False(t, journal.Exists(repo.Root()))

	resolvedBlob, err := repo.HashAt(ctx, resumed.Hash.String(), "file.txt")
	require.NoError(t, err)
	var content bytes.Buffer
	require.NoError(t, repo.ReadObject(ctx, git.BlobType, resolvedBlob, &content))
	require.Equal(t, "resolved\n", content.String())

	mergeInfo, err := repo.ReadCommit(ctx, resumed.Metadata.RemoteCommit.String())
	require.NoError(t, err)
	require.Equal(t, "Merge", mergeInfo.Message)
	require.ElementsMatch(t, []git.Hash{updated.Metadata.RemoteCommit, remoteTip}, mergeInfo.Parents)

	localInfo, err := repo.ReadCommit(ctx, resumed.Hash.String())
	require.NoError(t, err)
	require.Equal(t, []git.Hash{base}, localInfo.Parents)
}
