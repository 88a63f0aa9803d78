package git

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// OpenOptions configures the behavior of Open.
type OpenOptions struct {
	// Log specifies the logger to use for messages.
	Log *log.Logger

	exec execer
}

// Open opens the repository at the given directory.
// If dir is empty, the current working directory is used.
func Open(ctx context.Context, dir string, opts OpenOptions) (*Repository, error) {
	if opts.exec == nil {
		opts.exec = _realExec
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}

	root, err := newGitCmd(ctx, opts.Log,
		"rev-parse",
		"--show-toplevel",
	).Dir(dir).OutputString(opts.exec)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	return newRepository(root, opts.Log, opts.exec), nil
}

// Repository is a handle to a Git repository.
// It provides read-write access to the repository's contents.
//
// Commit and tree handles returned by a Repository's methods are
// content-addressed strings that only remain meaningful for objects that
// are still reachable; they must not outlive the Repository they came from.
type Repository struct {
	root string

	log  *log.Logger
	exec execer
}

func newRepository(root string, log *log.Logger, exec execer) *Repository {
	return &Repository{
		root: root,
		log:  log,
		exec: exec,
	}
}

// Root reports the top-level working directory of the repository.
func (r *Repository) Root() string { return r.root }

// gitCmd returns a gitCmd that will run
// with the repository's root as the working directory.
func (r *Repository) gitCmd(ctx context.Context, args ...string) *gitCmd {
	return newGitCmd(ctx, r.log, args...).Dir(r.root)
}
