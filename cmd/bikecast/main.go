// Command bikecast runs the YouBike daily demand pipeline: fetching the
// monthly transfer records, cleaning them, building daily features, training
// a forecaster and rendering the exploratory charts.
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

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
