// Command deskctl controls a running trading desk over its HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/tradingdesk/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
