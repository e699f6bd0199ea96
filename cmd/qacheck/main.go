package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"semantic-triage/internal/app"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/pipeline"
	"semantic-triage/internal/records"
	"semantic-triage/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "qacheck")
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps, os.Stdout); err != nil {
		deps.Log.Error("qa check failed", "err", err)
		os.Exit(1)
	}
}

// run scores RESPONSE against EXPECTED_RESPONSE and prints the scored table.
func run(ctx context.Context, deps app.Deps, out io.Writer) error {
	response := strings.TrimSpace(deps.Config.Response)
	expected := strings.TrimSpace(deps.Config.ExpectedResponse)
	if response == "" || expected == "" {
		return errors.New("RESPONSE and EXPECTED_RESPONSE are required")
	}
	maxTokens := deps.Config.MaxTextTokens

	enc, err := embeddings.NewLazy(deps.NewEncoder).Get(ctx)
	if err != nil {
		return err
	}
	res, err := pipeline.New(enc, deps.Log).Run(ctx,
		[]string{records.Truncate(response, maxTokens)},
		[]pipeline.Intent{{Name: "expected", Text: records.Truncate(expected, maxTokens)}},
	)
	if err != nil {
		return err
	}

	deps.Log.Info("qa similarity", "similarity", res.Records[0].Best)
	_, err = fmt.Fprintln(out, report.Scores(res, "response"))
	return err
}
