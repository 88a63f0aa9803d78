// Package classify reports, for a given commit id, whether the commit
// is Untracked or Tracked, keeping the distinction a tagged value
// rather than flattening it into a boolean plus a possibly-zero struct.
package classify

import (
	"context"
	"errors"
	"fmt"

	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/metadata"
)

// Status is the classification of a commit.
type Status int

const (
	// Untracked means the commit has no parseable tracking metadata.
	Untracked Status = iota
	// Tracked means the commit has valid tracking metadata.
	Tracked
)

func (s Status) String() string {
	switch s {
	case Untracked:
		return "Untracked"
	case Tracked:
		return "Tracked"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Commit is a tagged variant over a commit's classification: either
// Untracked, or Tracked with its metadata. Callers switch on Status
// before consulting Metadata; Metadata is the zero value when
// Status == Untracked.
type Commit struct {
	Hash     git.Hash
	Status   Status
	Metadata metadata.Metadata
}

// Classifier classifies local commits by consulting their tracking
// metadata.
type Classifier struct {
	store *metadata.Store
}

// New returns a Classifier backed by repo's tracking metadata.
func New(repo *git.Repository) *Classifier {
	return &Classifier{store: metadata.NewStore(repo)}
}

// Classify reads any tracking metadata attached to commit and returns
// its classification. A note that fails to parse, or no note at all,
// both classify the commit as Untracked: this is the one place in the
// engine where "absent" and "malformed" metadata are deliberately
// indistinguishable.
func (c *Classifier) Classify(ctx context.Context, commit git.Hash) (Commit, error) {
	m, err := c.store.Read(ctx, commit)
	if err != nil {
		if errors.Is(err, metadata.ErrAbsent) {
			return Commit{Hash: commit, Status: Untracked}, nil
		}
		return Commit{}, fmt.Errorf("classify %s: %w", commit.Short(), err)
	}

	return Commit{Hash: commit, Status: Tracked, Metadata: m}, nil
}
