package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"semantic-triage/internal/app"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/pipeline"
	"semantic-triage/internal/records"
	"semantic-triage/internal/report"
)

const defaultIntent = `Authentication or authorization failures, invalid or expired tokens,
identity verification errors, and execution timeouts in AWS Lambda
or Step Functions workflows.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "triage")
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps, os.Stdin, os.Stdout); err != nil {
		deps.Log.Error("triage failed", "err", err)
		os.Exit(1)
	}
}

// run reads log text from INPUT_FILE or stdin, scores each line against the
// target intents and prints the most relevant lines.
func run(ctx context.Context, deps app.Deps, stdin io.Reader, out io.Writer) error {
	raw, err := readInput(deps.Config.InputFile, stdin)
	if err != nil {
		return err
	}
	lines := records.TruncateAll(records.SplitLines(raw), deps.Config.MaxTextTokens)
	if len(lines) == 0 {
		return errors.New("no log lines to score")
	}

	intents := deps.Config.TargetIntents
	if len(intents) == 0 {
		intents = []string{defaultIntent}
	}

	enc, err := embeddings.NewLazy(deps.NewEncoder).Get(ctx)
	if err != nil {
		return err
	}
	res, err := pipeline.New(enc, deps.Log).Run(ctx, lines, pipeline.NamedIntents(intents))
	if err != nil {
		return err
	}

	deps.Log.Info("Most relevant log lines", "lines", len(lines), "top_k", deps.Config.TopK)
	_, err = fmt.Fprintln(out, report.Top(res, deps.Config.TopK, "log"))
	return err
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input file: %w", err)
	}
	return string(b), nil
}
