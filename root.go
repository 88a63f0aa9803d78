package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"go.ubr.dev/ubr/internal/engine"
	"go.ubr.dev/ubr/internal/git"
)

// globalOptions are flags accepted by every command.
type globalOptions struct {
	Quiet   bool `short:"q" help:"Suppress non-essential output"`
	DryRun  bool `name:"dry-run" help:"Do not push; still perform local object-store writes"`
	Verbose bool `short:"v" help:"Enable debug logging"`
}

type rootCmd struct {
	globalOptions

	Create createCmd `cmd:"" help:"Track a local commit, publishing it to a private remote branch"`
	Sync   syncCmd   `cmd:"" help:"Reconcile tracked commits with the upstream mainline and their remote branches"`
	Push   pushCmd   `cmd:"" help:"Move a named local branch to HEAD"`
	Diff   diffCmd   `cmd:"" help:"Show the diff between the upstream mainline and a tracked commit's remote branch"`
}

func (cmd *rootCmd) AfterApply(logger *log.Logger) error {
	switch {
	case cmd.Quiet:
		logger.SetLevel(log.ErrorLevel)
	case cmd.Verbose:
		logger.SetLevel(log.DebugLevel)
	}
	return nil
}

// openEngine opens the repository rooted at the current directory and
// wraps it in an Engine, the shared setup every subcommand needs before
// it can do anything.
func openEngine(ctx context.Context, logger *log.Logger, opts *globalOptions) (*engine.Engine, error) {
	repo, err := git.Open(ctx, ".", git.OpenOptions{Log: logger})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return engine.New(repo, engine.Options{
		Program: "ubr",
		Log:     logger,
	}), nil
}
