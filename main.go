// ubr tracks a linear stack of local commits, one per pull request, and
// keeps each one's private remote branch in sync as the commit, the
// remote branch, and the upstream mainline all move independently.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cmd rootCmd
	kctx := kong.Parse(
		&cmd,
		kong.Name("ubr"),
		kong.Description("Track one commit per pull request on a linear branch, and keep each one in sync."),
		kong.Bind(logger, &cmd.globalOptions),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.UsageOnError(),
	)

	if err := kctx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
