package engine

import (
	"errors"
	"fmt"

	"go.ubr.dev/ubr/internal/git"
)

// ErrBadRevspec indicates that a user-supplied revspec did not resolve
// to a commit.
var ErrBadRevspec = errors.New("bad revspec")

// ErrAlreadyPushed indicates that a revspec resolved to a commit at or
// below the upstream mainline, so there is nothing local left to track
// or sync.
var ErrAlreadyPushed = errors.New("commit is already at or below the upstream mainline")

// ErrAlreadyTracked indicates that create was run against a commit that
// already has tracking metadata, without --force.
var ErrAlreadyTracked = errors.New("commit is already tracked")

// ErrNotTracked indicates that sync was run with an explicit revspec
// naming an Untracked commit.
var ErrNotTracked = errors.New("commit is not tracked")

// ErrDetachedHead indicates that HEAD was detached when the engine looked
// up the name of the checked-out local branch.
var ErrDetachedHead = git.ErrDetachedHead

// ErrBranchNameTaken indicates that create's derived remote branch name
// already exists on the remote, and --force was not given to let it be
// overwritten.
var ErrBranchNameTaken = errors.New("remote branch name already exists")

// CherrypickConflictError is returned when cherry-picking a local
// commit onto the upstream mainline produces conflicts, in Track or
// UpdateLocalBranchHead. There is no recovery path for this error: the
// authored diff simply does not apply to the current mainline, and the
// journal is never written for it.
type CherrypickConflictError struct {
	Commit git.Hash
	Onto   git.Hash
	Files  []string
}

func (e *CherrypickConflictError) Error() string {
	return fmt.Sprintf("cherry-pick %s onto %s conflicts in: %v", e.Commit.Short(), e.Onto.Short(), e.Files)
}

// MergeConflictError is returned when reconciling a local commit's view
// of its remote branch with the fetched remote tip (MergeRemoteHead)
// or with the upstream mainline (SyncWithMain) produces conflicts. By
// the time this is returned, the conflict-surfacing protocol
// has already checked out the conflict markers and written the journal;
// this error only carries the user-visible message.
type MergeConflictError struct {
	// Local is the commit id of the side named "local" in the message:
	// the remote branch tip as last known locally (R), or the upstream
	// mainline for SyncWithMain.
	Local git.Hash

	// Remote is the commit id of the side named "remote" in the
	// message: the fetched tip (T) of the remote branch, or the remote
	// branch tip as last known locally (R) for SyncWithMain.
	Remote git.Hash

	// Program is the name to use in the suggested recovery command.
	Program string
}

func (e *MergeConflictError) Error() string {
	program := e.Program
	if program == "" {
		program = "ubr"
	}
	return fmt.Sprintf(
		"Unable to merge local commit (%s) with commit from remote (%s)\n"+
			"Once all the conflicts has been resolved, run '%s sync --continue'\n",
		e.Local, e.Remote, program,
	)
}
