package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/git"
)

const featureFileFixture = `
git add file.txt
git commit -q -m 'Add feature file'
-- file.txt --
hello world
`

func TestTrack(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta, err := eng.Track(ctx, head, base, engine.TrackOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, "add-feature-file", meta.RemoteBranch)
	require.NotEmpty(t, meta.RemoteCommit)

	c, err := eng.Classify(ctx, head)
	require.NoError(t, err)
	require.Equal(t, classify.Tracked, c.Status)
	require.Equal(t, meta, c.Metadata)

	remoteInfo, err := repo.ReadCommit(ctx, meta.RemoteCommit.String())
	require.NoError(t, err)
	require.Equal(t, []git.Hash{base}, remoteInfo.Parents)

	blob, err := repo.HashAt(ctx, meta.RemoteCommit.String(), "file.txt")
	require.NoError(t, err)
	require.NotEmpty(t, blob)
}

func TestTrackNameTaken(t *testing.T) {
	repo, eng := newFixture(t, `
git push -q origin HEAD:refs/heads/add-feature-file
`+featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	_, err = eng.Track(ctx, head, base, engine.TrackOptions{})
	require.ErrorIs(t, err, engine.ErrBranchNameTaken)
}

func TestTrackCustomName(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	base, err := eng.BaseCommit(ctx)
	require.NoError(t, err)
	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)

	meta, err := eng.Track(ctx, head, base, engine.TrackOptions{Name: "custom-branch"})
	require.NoError(t, err)
	require.Equal(t, "custom-branch", meta.RemoteBranch)
}

func TestRebase(t *testing.T) {
	repo, eng := newFixture(t, featureFileFixture)
	ctx := context.Background()

	head, err := repo.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)
	onto, err := repo.PeelToCommit(ctx, "origin/main")
	require.NoError(t, err)

	originalInfo, err := repo.ReadCommit(ctx, head.String())
	require.NoError(t, err)

	newCommit, err := eng.Rebase(ctx, head, onto)
	require.NoError(t, err)
	require.NotEqual(t, head, newCommit)

	info, err := repo.ReadCommit(ctx, newCommit.String())
	require.NoError(t, err)
	require.Equal(t, []git.Hash{onto}, info.Parents)
	require.Equal(t, originalInfo.Message, info.Message)
	require.Equal(t, originalInfo.Author, info.Author)

	blob, err := repo.HashAt(ctx, newCommit.String(), "file.txt")
	require.NoError(t, err)
	require.NotEmpty(t, blob)
}
