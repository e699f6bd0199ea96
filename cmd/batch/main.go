package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"semantic-triage/internal/app"
	"semantic-triage/internal/dispatch"
)

const defaultIntent = "Authentication or authorization failures..."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "batch", app.WithEngine())
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps, os.Stdout); err != nil {
		deps.Log.Error("batch scoring failed", "err", err)
		os.Exit(1)
	}
}

// run scores INPUT_TABLE into OUTPUT_TABLE and prints the job report as JSON.
func run(ctx context.Context, deps app.Deps, out io.Writer) error {
	d, err := app.NewDispatcher(deps)
	if err != nil {
		return err
	}

	texts := deps.Config.TargetIntents
	if len(texts) == 0 {
		texts = []string{defaultIntent}
	}
	intents, err := dispatch.ResolveIntents(ctx, deps.Store, deps.Model, dispatch.IntentsFromTexts(texts))
	if err != nil {
		return err
	}

	rep, err := d.Run(ctx, dispatch.Request{
		InputTable:  deps.Config.InputTable,
		OutputTable: deps.Config.OutputTable,
		TextColumn:  deps.Config.TextColumn,
		ScoreColumn: deps.Config.ScoreColumn,
		Intents:     intents,
		Partitions:  deps.Config.Partitions,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
