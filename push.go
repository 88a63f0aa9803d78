package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"go.ubr.dev/ubr/internal/git"
	"go.ubr.dev/ubr/internal/text"
)

// pushCmd is a lightweight helper with no engine involvement: it just
// moves a human-named branch to HEAD, with no tracking metadata or
// remote-branch bookkeeping.
type pushCmd struct {
	Name string `arg:"" help:"Branch to move to HEAD."`
}

func (*pushCmd) Help() string {
	return text.Dedent(`
		Force-moves a local branch to HEAD. This has nothing to do with
		tracked commits or their remote branches; it is a small
		convenience for branches you manage by hand alongside a stack.
	`)
}

func (cmd *pushCmd) Run(ctx context.Context, logger *log.Logger, opts *globalOptions) error {
	repo, err := git.Open(ctx, ".", git.OpenOptions{Log: logger})
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.PeelToCommit(ctx, "HEAD")
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}

	if err := repo.SetBranchHead(ctx, cmd.Name, head); err != nil {
		return fmt.Errorf("move %s to HEAD: %w", cmd.Name, err)
	}

	logger.Info("Moved branch", "name", cmd.Name, "commit", head)
	if !opts.Quiet {
		fmt.Printf("%s -> %s\n", cmd.Name, head.Short())
	}
	return nil
}
