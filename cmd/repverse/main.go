package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(os.Stdin, nil)
	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(cmd.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}
