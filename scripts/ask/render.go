package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ekaya-inc/election-assistant/pkg/models"
)

func renderResponse(w io.Writer, resp *models.AskResponse) {
	_, _ = fmt.Fprintf(w, "Intent: %s\n", resp.Intent)

	if resp.Correction != nil {
		_, _ = fmt.Fprintf(w, "Correction: %s → %s (%s)\n",
			resp.Correction.Original, resp.Correction.Resolved, resp.Correction.Column.Label())
	}

	if resp.Message != "" {
		_, _ = fmt.Fprintln(w, resp.Message)
	}

	if resp.NeedsSelection() {
		for i, choice := range resp.Choices {
			_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, choice.DisplayLabel)
		}
		_, _ = fmt.Fprintln(w, "Relancez avec --resolved VALEUR --column COLONNE.")
		return
	}

	if resp.QueryText != "" {
		_, _ = fmt.Fprintf(w, "SQL: %s\n", resp.QueryText)
	}

	if len(resp.Columns) > 0 {
		renderTable(w, resp.Columns, resp.Rows)
		if resp.Truncated {
			_, _ = fmt.Fprintln(w, "(résultat tronqué)")
		}
	}
}

func renderTable(w io.Writer, cols []string, rows []map[string]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 lignes)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i, col := range cols {
			r[i] = formatValue(row[col])
		}
		t.AppendRow(r)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d lignes)\n", len(rows))
}

func renderSummary(w io.Writer, chunks <-chan string) {
	_, _ = fmt.Fprint(w, "\n")
	for chunk := range chunks {
		_, _ = fmt.Fprint(w, chunk)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	case float32:
		return formatValue(float64(val))
	default:
		return fmt.Sprint(val)
	}
}
