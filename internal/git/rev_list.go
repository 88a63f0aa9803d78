package git

import (
	"bufio"
	"context"
	"errors"
)

// RevList iterates over the commits in a repository.
//
// Use this like bufio.Scanner:
//
//	for revList.Next() {
//		commit := revList.Commit()
//		// ...
//	}
//	if err := revList.Err(); err != nil {
//		// ...
//	}
type RevList struct {
	cmd  *gitCmd
	out  *bufio.Scanner
	err  error
	exec execer
}

// Next reports whether there is another commit in the list.
func (r *RevList) Next() bool {
	if r.out.Scan() {
		return true
	}

	if err := r.out.Err(); err != nil {
		// Reading output failed.
		// Kill the command.
		r.err = r.cmd.Kill(r.exec)
		return false
	}

	// Reached EOF.
	// Wait for the command to exit.
	r.err = r.cmd.Wait(r.exec)
	return false
}

// Commit returns the hash of the commit at the current position.
// Next must have been called before this.
func (r *RevList) Commit() Hash {
	return Hash(r.out.Text())
}

// Err returns errors encountered while iterating
// or waiting for the command to exit.
func (r *RevList) Err() error {
	return errors.Join(r.err, r.out.Err())
}

// ListCommits returns the commits reachable from start but not from
// stop, in topological order, oldest first. This is how sync finds the
// unpushed commits on the current branch to walk one at a time: start is
// the branch tip and stop is the last commit already known to be
// synced, or the merge base with the mainline on the very first sync.
func (r *Repository) ListCommits(ctx context.Context, start, stop string) (*RevList, error) {
	cmd := r.gitCmd(ctx, "rev-list", "--topo-order", "--reverse", start, "--not", stop)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(r.exec); err != nil {
		return nil, err
	}

	return &RevList{
		cmd:  cmd,
		out:  bufio.NewScanner(out),
		exec: r.exec,
	}, nil
}
