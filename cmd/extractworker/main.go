package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aquaforge/pondops-backend/internal/app"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/temporalx/temporalworker"
)

// The extraction worker shares the API's composition root so activity
// code sees the same repos, storage, and event bus wiring.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}

	if a.Temporal == nil {
		a.Log.Error("TEMPORAL_ADDRESS is required for the extraction worker")
		a.Close()
		os.Exit(1)
	}

	runner, err := temporalworker.NewRunner(a.Log, a.Temporal, a.Modules.Ingestion.Activities())
	if err != nil {
		a.Log.Error("Worker init failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if m := observability.Current(); m != nil && a.Cfg.MetricsAddr != "" {
		m.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}

	if err := runner.Start(ctx); err != nil {
		a.Log.Error("Worker failed to start", "error", err)
		cancel()
		a.Close()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	a.Log.Info("Shutting down worker")
	cancel()
	a.Close()
}
