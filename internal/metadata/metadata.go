// Package metadata implements the tracking-metadata store: the per-commit
// tracking record binding a local commit to the private remote branch
// that carries its published diff.
//
// The record is persisted as a Git note attached to the local commit,
// using the single global notes namespace exposed by
// [go.ubr.dev/ubr/internal/git.Repository.Notes]. Writes are upserts;
// reads that cannot make sense of the note content are treated as an
// absent record, never as an error, so that a foreign or malformed note
// degrades to "this commit is Untracked" rather than aborting a sync.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.ubr.dev/ubr/internal/git"
)

// Metadata is the tracking record attached to a Tracked commit: the name
// of its private remote branch and the commit id the engine last knew as
// that branch's tip.
type Metadata struct {
	// RemoteBranch is the name of the branch under refs/heads on the
	// remote that carries this commit's published diff.
	RemoteBranch string

	// RemoteCommit is the commit id last known to be the tip of
	// RemoteBranch.
	RemoteCommit git.Hash
}

const (
	branchKey = "remote-branch"
	commitKey = "remote-commit"
)

// Format renders m in the two-line text format notes carry:
//
//	remote-branch: <name>
//	remote-commit: <hex-oid>
func Format(m Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", branchKey, m.RemoteBranch)
	fmt.Fprintf(&b, "%s: %s\n", commitKey, m.RemoteCommit)
	return b.String()
}

// ErrAbsent indicates that a note did not parse as valid tracking
// metadata, so the commit it is attached to classifies as Untracked.
// This is not itself a commit classification error: a note missing
// remote-commit is always absent, never a half-valid record.
var ErrAbsent = errors.New("no tracking metadata")

// Parse reads the text format written by Format. Both remote-branch and
// remote-commit are required; a record missing either, or one whose
// remote-commit is not a well-formed commit id, is [ErrAbsent]. Extra
// lines are ignored, and the two required keys may appear in any order,
// matching a note that a human or an older version of the engine wrote
// by hand.
func Parse(text string) (Metadata, error) {
	var m Metadata
	var haveBranch, haveCommit bool

	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case branchKey:
			m.RemoteBranch = value
			haveBranch = value != ""
		case commitKey:
			m.RemoteCommit = git.Hash(value)
			haveCommit = isCommitID(value)
		}
	}

	if !haveBranch || !haveCommit {
		return Metadata{}, ErrAbsent
	}
	return m, nil
}

// isCommitID reports whether s is a well-formed (possibly abbreviated)
// hex commit id. Whether it resolves to a commit that actually exists is
// the caller's concern; a value that is not even hex can never resolve,
// so the record is absent.
func isCommitID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Store reads and writes tracking metadata for commits in a repository.
type Store struct {
	notes *git.Notes
}

// NewStore returns a Store backed by repo's default notes namespace.
func NewStore(repo *git.Repository) *Store {
	return &Store{notes: repo.Notes("")}
}

// Read returns the tracking metadata attached to commit.
// It returns [ErrAbsent] if commit has no metadata, whether because no
// note is attached or because the attached note does not parse.
func (s *Store) Read(ctx context.Context, commit git.Hash) (Metadata, error) {
	text, err := s.notes.Show(ctx, commit.String())
	if err != nil {
		if errors.Is(err, git.ErrNotExist) {
			return Metadata{}, ErrAbsent
		}
		return Metadata{}, fmt.Errorf("read note: %w", err)
	}

	return Parse(text)
}

// Write attaches m to commit, replacing any metadata already attached.
func (s *Store) Write(ctx context.Context, commit git.Hash, m Metadata) error {
	if err := s.notes.Add(ctx, commit.String(), Format(m)); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

// Remove detaches any tracking metadata from commit. This is the
// persistence half of untrack; it is not an error for commit to
// have no metadata.
func (s *Store) Remove(ctx context.Context, commit git.Hash) error {
	if err := s.notes.Remove(ctx, commit.String()); err != nil {
		return fmt.Errorf("remove note: %w", err)
	}
	return nil
}
