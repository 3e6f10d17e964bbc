// cmd/iqscrape/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/21prnv/InfluenceIq/internal/cli"
)

func main() {
	// Cancellation reaches every run; results are still written on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
