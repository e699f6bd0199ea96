package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"semantic-triage/internal/app"
	"semantic-triage/internal/dispatch"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/httputil"
	"semantic-triage/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "worker", app.WithStore(), app.WithQueue())
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps, workerName()); err != nil {
		deps.Log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

// run serves partition tasks with a single process-wide worker. The encoder
// is built on the first task, not at startup, so an idle worker stays cheap.
func run(ctx context.Context, deps app.Deps, name string) error {
	w := dispatch.NewWorker(name, embeddings.NewLazy(deps.NewEncoder), deps.Store, deps.Log)
	deps.Log.Info("partition worker starting", "worker", name)

	g, ctx := errgroup.WithContext(ctx)

	// Run queue worker
	g.Go(func() error {
		return deps.Queue.Serve(ctx, queue.TaskTypeScorePartition, w.Handle)
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps, "worker")
	})

	return g.Wait()
}

func workerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
