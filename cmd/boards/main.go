// Command boards manages boards of groups of items in a local key-value
// store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/boardstore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
