package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/text"
)

type createCmd struct {
	Revspec string `arg:"" optional:"" help:"Commit to track. Defaults to HEAD."`

	Name  string `help:"Remote branch name. Defaults to a name derived from the commit subject."`
	Force bool   `help:"Re-track an already-tracked commit, or reuse a taken remote branch name."`
}

func (*createCmd) Help() string {
	return text.Dedent(`
		Tracks a single local commit, publishing a private remote branch
		carrying its diff against the upstream mainline.

		With no arguments, tracks HEAD. Pass a revspec to track a commit
		further back in the stack instead:

			ubr create HEAD^

		Running create again on an already-tracked commit fails unless
		--force is given, in which case the commit is untracked and
		re-tracked from scratch.
	`)
}

func (cmd *createCmd) Run(ctx context.Context, logger *log.Logger, opts *globalOptions) error {
	eng, err := openEngine(ctx, logger, opts)
	if err != nil {
		return err
	}

	c, err := eng.Create(ctx, engine.CreateOptions{
		Revspec: cmd.Revspec,
		Name:    cmd.Name,
		Force:   cmd.Force,
		DryRun:  opts.DryRun,
	})
	if err != nil {
		return err
	}

	logger.Info("Tracked commit", "commit", c.Hash, "branch", c.Metadata.RemoteBranch)
	if !opts.Quiet {
		info, err := eng.Repository().ReadCommit(ctx, c.Hash.String())
		if err != nil {
			return fmt.Errorf("read commit %s: %w", c.Hash.Short(), err)
		}
		fmt.Printf("%s %s (%s) -> %s (%s)\n",
			c.Hash.Short(), info.Subject(), humanize.Time(info.Author.Time),
			c.Metadata.RemoteBranch, c.Metadata.RemoteCommit.Short())
	}
	return nil
}
