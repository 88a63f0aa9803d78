// Package engine implements the commit-tracking and synchronization
// engine: the operations on untracked and tracked commits, the sync
// walk, and the create logic, built on top of package git for object
// access, package metadata for tracking records, package classify for
// commit classification, and package journal for resumable conflicts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/metadata"
)

// Options configures an Engine.
type Options struct {
	// Remote is the name of the Git remote the upstream mainline and
	// tracked commits' private branches live on. If empty, a repository
	// with a single remote uses that one, and a repository with several
	// uses "origin".
	Remote string

	// Program names the CLI binary, used in user-facing conflict
	// messages that suggest a follow-up command.
	Program string

	Log *log.Logger
}

// Engine ties the repository, metadata store, and classifier together
// into the commit operations and orchestrators the commands are built
// from.
type Engine struct {
	repo    *git.Repository
	store   *metadata.Store
	class   *classify.Classifier
	remote  string
	program string
	log     *log.Logger

	// branch is the trunk branch this invocation operates on, resolved
	// lazily by mainBranch and cached for the life of the Engine.
	branch string
}

// New constructs an Engine over an already-open repository.
func New(repo *git.Repository, opts Options) *Engine {
	if opts.Program == "" {
		opts.Program = "ubr"
	}
	if opts.Log == nil {
		opts.Log = log.New(nil)
	}

	return &Engine{
		repo:    repo,
		store:   metadata.NewStore(repo),
		class:   classify.New(repo),
		remote:  opts.Remote,
		program: opts.Program,
		log:     opts.Log,
	}
}

// Repository returns the engine's underlying repository handle.
func (e *Engine) Repository() *git.Repository { return e.repo }

// CurrentBranch reports the current local branch name, failing with
// [ErrDetachedHead] if HEAD is detached.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := e.repo.CurrentBranch(ctx)
	if err != nil {
		return "", err // already git.ErrDetachedHead-wrapped
	}
	return branch, nil
}

// resolveRemote reports the remote that tracked commits publish to and
// the upstream mainline is fetched from, resolving it once and caching
// it. An explicitly configured remote wins; otherwise a repository with
// a single remote uses that one, and a repository with several uses
// "origin".
func (e *Engine) resolveRemote(ctx context.Context) (string, error) {
	if e.remote != "" {
		return e.remote, nil
	}

	remotes, err := e.repo.ListRemotes(ctx)
	if err != nil {
		return "", fmt.Errorf("list remotes: %w", err)
	}

	switch {
	case len(remotes) == 0:
		return "", errors.New("repository has no remotes")
	case len(remotes) == 1:
		e.remote = remotes[0]
	case slices.Contains(remotes, "origin"):
		e.remote = "origin"
	default:
		return "", fmt.Errorf("several remotes (%s) and none named origin", strings.Join(remotes, ", "))
	}
	return e.remote, nil
}

// mainBranch reports the name of the trunk branch this invocation
// operates on, resolving it from HEAD once and caching it. Sync
// --continue seeds the cache from the journal instead: HEAD is still
// detached at the conflicted merge when that command starts, and stays
// detached until the rest of the walk completes.
func (e *Engine) mainBranch(ctx context.Context) (string, error) {
	if e.branch == "" {
		branch, err := e.repo.CurrentBranch(ctx)
		if err != nil {
			return "", err
		}
		e.branch = branch
	}
	return e.branch, nil
}

// BaseCommit reports the upstream mainline tip: the trunk branch's
// remote-tracking ref, the baseline every tracked diff is measured
// against.
func (e *Engine) BaseCommit(ctx context.Context) (git.Hash, error) {
	branch, err := e.mainBranch(ctx)
	if err != nil {
		return "", err
	}
	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return "", err
	}

	ref := remote + "/" + branch
	commit, err := e.repo.PeelToCommit(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve upstream mainline %s: %w", ref, err)
	}
	return commit, nil
}

// ResolveUnpushed resolves revspec to a commit, failing with
// [ErrAlreadyPushed] if it is not a strict descendant of base.
func (e *Engine) ResolveUnpushed(ctx context.Context, revspec string, base git.Hash) (git.Hash, error) {
	commit, err := e.repo.PeelToCommit(ctx, revspec)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadRevspec, revspec)
	}

	if commit == base || e.repo.IsAncestor(ctx, commit, base) {
		return "", ErrAlreadyPushed
	}
	return commit, nil
}

// WalkUnpushed returns the commits strictly between base and the
// current branch tip, topologically sorted oldest-first.
func (e *Engine) WalkUnpushed(ctx context.Context, base git.Hash) ([]git.Hash, error) {
	head, err := e.repo.PeelToCommit(ctx, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	list, err := e.repo.ListCommits(ctx, head.String(), base.String())
	if err != nil {
		return nil, fmt.Errorf("list unpushed commits: %w", err)
	}

	var commits []git.Hash
	for list.Next() {
		commits = append(commits, list.Commit())
	}
	if err := list.Err(); err != nil {
		return nil, fmt.Errorf("walk unpushed commits: %w", err)
	}
	return commits, nil
}

// Classify reports whether commit is Tracked or Untracked, and its
// metadata if Tracked. Exposed directly for read-only callers (the diff
// command) that need a classification without running any operation.
func (e *Engine) Classify(ctx context.Context, commit git.Hash) (classify.Commit, error) {
	return e.class.Classify(ctx, commit)
}

// currentSignature resolves the ambient Git identity the engine stamps
// as committer on every commit it authors on a user's behalf: author is
// preserved from whatever commit is being reconciled, but committer is
// always this, the current signature, never copied from the author.
func (e *Engine) currentSignature(ctx context.Context) (git.Signature, error) {
	sig, err := e.repo.CurrentSignature(ctx)
	if err != nil {
		return git.Signature{}, fmt.Errorf("resolve current signature: %w", err)
	}
	return sig, nil
}

func (e *Engine) writeCommit(ctx context.Context, req git.CommitTreeRequest) (git.Hash, error) {
	return e.repo.CommitTree(ctx, req)
}
