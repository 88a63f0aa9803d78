package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize/english"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/text"
)

type syncCmd struct {
	Revspec string `arg:"" optional:"" help:"Restrict the sync to a single tracked commit."`

	Continue bool `name:"continue" help:"Resume a sync that stopped on a merge conflict."`
}

func (*syncCmd) Help() string {
	return text.Dedent(`
		Fetches the remote, then reconciles every unpushed commit on the
		current branch in order: untracked commits are rebased forward,
		tracked commits are reconciled against both the upstream mainline
		and their own remote branch and then pushed.

		If a tracked commit's remote branch has diverged from the local
		commit's view of it in a way that cannot be merged automatically,
		sync stops, leaves conflict markers in the working tree, and
		records enough state to resume. Resolve the conflict, stage it,
		and run:

			ubr sync --continue

		Pass a revspec to reconcile a single tracked commit instead of
		walking the whole stack.
	`)
}

func (cmd *syncCmd) Run(ctx context.Context, logger *log.Logger, opts *globalOptions) error {
	eng, err := openEngine(ctx, logger, opts)
	if err != nil {
		return err
	}

	result, err := eng.Sync(ctx, engine.SyncOptions{
		Continue: cmd.Continue,
		Revspec:  cmd.Revspec,
		DryRun:   opts.DryRun,
	})
	if err != nil {
		return err
	}

	logger.Info("Synced", "head", result.Head, "walked", result.Walked, "pushed", result.Pushed)
	if !opts.Quiet {
		fmt.Printf("walked %s, pushed %s, HEAD is now %s\n",
			english.Plural(result.Walked, "commit", ""),
			english.Plural(result.Pushed, "remote branch", "remote branches"),
			result.Head.Short())
	}
	return nil
}
