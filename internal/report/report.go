// Package report renders scored records for terminal output.
package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"semantic-triage/internal/pipeline"
)

// Top renders the k best records of res, best first.
func Top(res pipeline.Result, k int, textHeader string) string {
	return render(res.Targets, res.Top(k), textHeader)
}

// Scores renders every record of res in input order.
func Scores(res pipeline.Result, textHeader string) string {
	return render(res.Targets, res.Records, textHeader)
}

func render(targets pipeline.Targets, records []pipeline.ScoredRecord, textHeader string) string {
	multi := len(targets.Intents) > 1
	headers := []string{textHeader, "similarity"}
	if multi {
		for _, in := range targets.Intents {
			headers = append(headers, in.Name)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{rec.Text, formatScore(rec.Best)}
		if multi {
			for _, s := range rec.Scores {
				row = append(row, formatScore(s))
			}
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

func formatScore(s float32) string {
	return fmt.Sprintf("%.4f", s)
}
