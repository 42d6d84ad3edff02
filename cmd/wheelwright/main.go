package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/wheelwright/internal/cli"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := cli.New(os.Stderr, cli.LogInfo)
	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
		cli.ReportError(err)
		cancel()
		os.Exit(wwerrors.ExitCode(err))
	}
}
