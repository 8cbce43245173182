package prompts

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

// NarrativePreviewRows is how many result rows the summarizer shows the oracle.
const NarrativePreviewRows = 3

// RenderPreview renders up to maxRows rows as a markdown table, columns in the given order.
func RenderPreview(columns []string, rows []map[string]any, maxRows int) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	tw.AppendHeader(header)

	for i, row := range rows {
		if maxRows > 0 && i >= maxRows {
			break
		}
		r := make(table.Row, len(columns))
		for j, col := range columns {
			r[j] = textutil.FormatCell(row[col])
		}
		tw.AppendRow(r)
	}
	return tw.RenderMarkdown()
}

// BuildNarrativeInstructions creates the summarizer instructions around a data
// preview of a result holding rowCount rows.
func BuildNarrativeInstructions(rowCount int, preview string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Tu es l'assistant électoral 2025. Données (%d lignes):\n%s\n\n", rowCount, preview))
	prompt.WriteString("CONSIGNES:\n")
	prompt.WriteString("- Réponds uniquement à partir de ces données, sans connaissance extérieure.\n")
	prompt.WriteString("- Une seule phrase concise, en français simple.\n")
	prompt.WriteString("- Ne spécule sur aucune date autre que 2025.\n")
	prompt.WriteString("- Utilise seulement les nombres présents dans le tableau, écrits en entiers sans décimales.\n")
	prompt.WriteString("- Parle du parti ou de la localité demandés, pas d'un autre.\n")
	prompt.WriteString("- Reformule la question de manière concise avant de donner la réponse.\n")
	return prompt.String()
}

// NarrativeFallback is the deterministic summary used when the oracle is unavailable.
func NarrativeFallback(rowCount int) string {
	return fmt.Sprintf("Données récupérées: %d résultat(s).", rowCount)
}

// NoDataMessage is the fixed summary for an empty result.
const NoDataMessage = "Aucune donnée ne correspond à votre recherche."
