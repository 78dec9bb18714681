// Command brunt controls Brunt Blind Engines through the vendor cloud.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tj-smith47/brunt-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
