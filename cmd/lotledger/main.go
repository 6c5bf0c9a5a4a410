package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lotledger/lotledger/cmd/lotledger/cli"
	"github.com/lotledger/lotledger/internal/app"
)

func main() {
	app.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
