package engine_test

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/git/gittest"
)

// baseFixture sets up a clone-shaped repository: a bare "origin.git" next
// to the work tree, registered as the "origin" remote, with "main"
// pushed and fetched so that refs/remotes/origin/main resolves the way
// the engine expects BaseCommit to.
const baseFixture = `
at 2024-01-01T00:00:00Z
as 'Test <test@example.com>'

mkdir origin.git
cd origin.git
git init -q --bare
cd ..

git init -q
git remote add origin origin.git
git commit -q --allow-empty -m 'initial commit'
git push -q origin HEAD:refs/heads/main
git fetch -q origin
`

// newFixture builds a repository from baseFixture plus script, and an
// Engine on top of it.
func newFixture(t *testing.T, script string) (*git.Repository, *engine.Engine) {
	t.Helper()

	fixture, err := gittest.LoadFixtureScript([]byte(baseFixture + script))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	ctx := context.Background()
	logger := log.New(io.Discard)
	repo, err := git.Open(ctx, fixture.Dir(), git.OpenOptions{Log: logger})
	require.NoError(t, err)

	eng := engine.New(repo, engine.Options{Program: "ubr", Log: logger})
	return repo, eng
}
