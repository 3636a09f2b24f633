package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hisabkitab/internal/cli"
	"hisabkitab/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
