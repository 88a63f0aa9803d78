package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"go.ubr.dev/ubr/internal/classify"
	"go.ubr.dev/ubr/internal/text"
)

// diffCmd is a read-only command: it never writes an object, moves a
// ref, or touches the metadata store. It exists purely to answer "what
// has this commit's remote branch accumulated relative to the upstream
// mainline", i.e. diff(M, R) in the glossary's notation.
type diffCmd struct {
	Revspec string `arg:"" optional:"" help:"Tracked commit to diff. Defaults to HEAD."`
}

func (*diffCmd) Help() string {
	return text.Dedent(`
		Shows the file-level diff between the upstream mainline and a
		tracked commit's remote branch tip: everything the remote branch
		carries that the mainline does not yet have.

		Fails if the commit is not tracked.
	`)
}

func (cmd *diffCmd) Run(ctx context.Context, logger *log.Logger, opts *globalOptions) error {
	eng, err := openEngine(ctx, logger, opts)
	if err != nil {
		return err
	}

	revspec := cmd.Revspec
	if revspec == "" {
		revspec = "HEAD"
	}

	base, err := eng.BaseCommit(ctx)
	if err != nil {
		return err
	}

	commit, err := eng.ResolveUnpushed(ctx, revspec, base)
	if err != nil {
		return err
	}

	c, err := eng.Classify(ctx, commit)
	if err != nil {
		return err
	}
	if c.Status != classify.Tracked {
		return fmt.Errorf("%s is not tracked", commit.Short())
	}

	deltas, err := eng.Repository().DiffTree(ctx, base.String(), c.Metadata.RemoteCommit.String())
	if err != nil {
		return fmt.Errorf("diff %s against %s: %w", c.Metadata.RemoteBranch, base.Short(), err)
	}

	if len(deltas) == 0 {
		if !opts.Quiet {
			fmt.Println("no difference")
		}
		return nil
	}

	for _, d := range deltas {
		fmt.Printf("%c\t%s\n", d.Status, d.Path)
	}
	return nil
}
