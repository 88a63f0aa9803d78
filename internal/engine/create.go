package engine

import (
	"context"
	"fmt"

	"go.ubr.dev/ubr/internal/classify"
)

// CreateOptions configures Create.
type CreateOptions struct {
	// Revspec names the commit to track. Empty means "HEAD"; Create
	// applies that default itself.
	Revspec string

	// Name overrides the derived remote branch name.
	Name string

	// Force re-tracks an already-Tracked commit, untracking it first.
	Force bool

	// DryRun skips the publish push.
	DryRun bool
}

// Create implements the create command: it
// classifies revspec, rejects an already-Tracked commit unless Force is
// set (in which case it untracks first), calls Track, and publishes the
// new remote branch.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (classify.Commit, error) {
	revspec := opts.Revspec
	if revspec == "" {
		revspec = "HEAD"
	}

	base, err := e.BaseCommit(ctx)
	if err != nil {
		return classify.Commit{}, err
	}

	commit, err := e.ResolveUnpushed(ctx, revspec, base)
	if err != nil {
		return classify.Commit{}, err
	}

	c, err := e.class.Classify(ctx, commit)
	if err != nil {
		return classify.Commit{}, err
	}

	if c.Status == classify.Tracked {
		if !opts.Force {
			return classify.Commit{}, fmt.Errorf("%w: %s", ErrAlreadyTracked, commit.Short())
		}
		if c, err = e.Untrack(ctx, c); err != nil {
			return classify.Commit{}, err
		}
	}

	meta, err := e.Track(ctx, commit, base, TrackOptions{Name: opts.Name, Force: opts.Force})
	if err != nil {
		return classify.Commit{}, err
	}

	if !opts.DryRun {
		if err := e.pushTrackedCommit(ctx, meta); err != nil {
			return classify.Commit{}, err
		}
	}

	return classify.Commit{Hash: commit, Status: classify.Tracked, Metadata: meta}, nil
}
