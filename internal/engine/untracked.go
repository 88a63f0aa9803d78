package engine

import (
	"context"
	"errors"
	"fmt"

	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/metadata"
	"go.ubr.dev/ubr/internal/sliceutil"
)

// Rebase replays an Untracked commit's own diff onto a new parent,
// writing a new commit with the same author, current signature as
// committer, and the original message. The sync walk uses it to carry
// Untracked commits forward as the commits below them are rewritten.
//
// A cherry-pick conflict here is not journaled: no tracking metadata is
// at stake, so there is nothing for --continue to resume.
func (e *Engine) Rebase(ctx context.Context, commit, onto git.Hash) (git.Hash, error) {
	info, err := e.repo.ReadCommit(ctx, commit.String())
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", commit.Short(), err)
	}

	tree, err := e.cherryPick(ctx, commit, onto, false)
	if err != nil {
		return "", err
	}

	committer, err := e.currentSignature(ctx)
	if err != nil {
		return "", err
	}

	newCommit, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      tree,
		Message:   info.Message,
		Parents:   []git.Hash{onto},
		Author:    &info.Author,
		Committer: &committer,
	})
	if err != nil {
		return "", fmt.Errorf("write rebased commit: %w", err)
	}
	return newCommit, nil
}

// TrackOptions configures Track.
type TrackOptions struct {
	// Name overrides the derived remote branch name. If empty, the
	// branch name is derived from the commit's subject line.
	Name string

	// Force skips the remote branch-name collision check.
	Force bool
}

// Track turns an Untracked commit into a Tracked one: it
// cherry-picks the commit's diff onto base (the upstream mainline tip),
// commits the result as the commit's initial remote branch tip, and
// persists tracking metadata on commit. It does not push; the caller
// (the create command) publishes the new branch.
func (e *Engine) Track(ctx context.Context, commit, base git.Hash, opts TrackOptions) (metadata.Metadata, error) {
	info, err := e.repo.ReadCommit(ctx, commit.String())
	if err != nil {
		return metadata.Metadata{}, fmt.Errorf("read commit %s: %w", commit.Short(), err)
	}

	name := opts.Name
	if name == "" {
		name = DeriveBranchName(info.Subject())
	}

	if !opts.Force {
		if err := e.checkBranchNameAvailable(ctx, name); err != nil {
			return metadata.Metadata{}, err
		}
	}

	tree, err := e.cherryPick(ctx, commit, base, false)
	if err != nil {
		return metadata.Metadata{}, err
	}

	committer, err := e.currentSignature(ctx)
	if err != nil {
		return metadata.Metadata{}, err
	}

	remoteCommit, err := e.writeCommit(ctx, git.CommitTreeRequest{
		Tree:      tree,
		Message:   info.Message,
		Parents:   []git.Hash{base},
		Author:    &info.Author,
		Committer: &committer,
	})
	if err != nil {
		return metadata.Metadata{}, fmt.Errorf("write remote branch tip: %w", err)
	}

	meta := metadata.Metadata{RemoteBranch: name, RemoteCommit: remoteCommit}
	if err := e.store.Write(ctx, commit, meta); err != nil {
		return metadata.Metadata{}, fmt.Errorf("persist tracking metadata: %w", err)
	}
	return meta, nil
}

// checkBranchNameAvailable fails with [ErrBranchNameTaken] if name
// already exists under refs/heads on the remote.
func (e *Engine) checkBranchNameAvailable(ctx context.Context, name string) error {
	remote, err := e.resolveRemote(ctx)
	if err != nil {
		return err
	}

	refs, err := sliceutil.CollectErr(e.repo.ListRemoteRefs(ctx, remote, &git.ListRemoteRefsOptions{
		Heads:    true,
		Patterns: []string{"refs/heads/" + name},
	}))
	if err != nil {
		return fmt.Errorf("check remote branch name %q: %w", name, err)
	}

	for _, ref := range refs {
		if ref.Name == "refs/heads/"+name {
			return fmt.Errorf("%w: %s", ErrBranchNameTaken, name)
		}
	}
	return nil
}

// cherryPick replays commit's own diff onto the tree of onto, converting
// a git-level merge-tree conflict into the engine's typed
// [*CherrypickConflictError]. Shared by Rebase, Track, and
// UpdateLocalBranchHead, which differ only in what they do with the
// resulting tree.
func (e *Engine) cherryPick(ctx context.Context, commit, onto git.Hash, favorTheirs bool) (git.Hash, error) {
	tree, err := e.repo.Cherrypick(ctx, commit.String(), onto.String(), favorTheirs)
	if err != nil {
		var conflict *git.MergeTreeConflictError
		if errors.As(err, &conflict) {
			return "", &CherrypickConflictError{
				Commit: commit,
				Onto:   onto,
				Files:  collectFilenames(conflict),
			}
		}
		return "", fmt.Errorf("cherry-pick %s onto %s: %w", commit.Short(), onto.Short(), err)
	}
	return tree, nil
}

// collectFilenames converts a git-level merge-tree conflict into the
// plain filename list the engine's own conflict errors carry.
func collectFilenames(e *git.MergeTreeConflictError) []string {
	var files []string
	for f := range e.Filenames() {
		files = append(files, f)
	}
	return files
}
