package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SQLContext carries everything the SQL generation instructions embed.
type SQLContext struct {
	// Dialect is the engine's display name, e.g. "DuckDB".
	Dialect            string
	ColumnDescriptions map[string]string
	ColumnAliases      map[string][]string
	CanonicalView      string
	AllowedObjects     []string
	// SuggestedView is an allow-listed view preferred for this question, or "".
	SuggestedView string
	// ResolvedValue is an exact entity value the query must filter on, or "".
	ResolvedValue  string
	ResolvedColumn string
	// Feedback is the sanitized engine error of the previous attempt, or "".
	Feedback string
}

// BuildSQLInstructions creates the system instructions for query generation.
// A retry passes the same context plus Feedback, so its instructions are a
// superset of the first attempt's.
func BuildSQLInstructions(c SQLContext) string {
	var prompt strings.Builder
	view := c.CanonicalView

	prompt.WriteString(fmt.Sprintf("Tu es un moteur SQL strict pour %s expert des élections législatives 2025 en Côte d'Ivoire.\n\n", c.Dialect))

	descriptions, err := json.Marshal(c.ColumnDescriptions)
	if err != nil {
		descriptions = []byte("{}")
	}
	prompt.WriteString("SCHEMA: ")
	prompt.Write(descriptions)
	prompt.WriteString("\n\n")

	prompt.WriteString("SOURCES AUTORISÉES: ")
	prompt.WriteString(strings.Join(c.AllowedObjects, ", "))
	prompt.WriteString("\n\n")

	if aliases := formatColumnAliases(c.ColumnAliases); aliases != "" {
		prompt.WriteString("SYNONYMES DE COLONNES:\n")
		prompt.WriteString(aliases)
		prompt.WriteString("\n")
	}

	prompt.WriteString("RÈGLES:\n")
	prompt.WriteString("1. Réponds uniquement par une requête SQL pure, sans explication ni balise.\n")
	prompt.WriteString(fmt.Sprintf("2. Les totaux utilisent toujours SUM() sur %s.\n", view))
	prompt.WriteString("3. N'invente aucune colonne: utilise seulement celles du SCHEMA.\n")
	prompt.WriteString("4. PDCI-RDA désigne le Parti Démocratique de Côte d'Ivoire.\n")
	prompt.WriteString("5. Pour comparer des partis: parti_standardized IN ('A', 'B') avec GROUP BY parti_standardized.\n")
	prompt.WriteString("6. Ne filtre jamais par region quand l'utilisateur nomme une ville ou une circonscription, et inversement.\n")
	prompt.WriteString("7. N'utilise que les SOURCES AUTORISÉES.\n\n")

	prompt.WriteString("MODÈLES:\n")
	prompt.WriteString(fmt.Sprintf("A. Total des voix d'un parti: SELECT SUM(voix) AS total_voix FROM %s WHERE parti_standardized = 'X' AND UPPER(circonscription) = UPPER('Y');\n", view))
	prompt.WriteString(fmt.Sprintf("B. Nombre de communes ou sous-préfectures: SELECT COUNT(DISTINCT TRIM(SPLIT_PART(circonscription, ',', 1))) FROM %s WHERE UPPER(region) = UPPER('X');\n", view))
	prompt.WriteString(fmt.Sprintf("C. Adversaires de X: SELECT candidat, parti_standardized, voix FROM %[1]s WHERE circonscription = (SELECT circonscription FROM %[1]s WHERE UPPER(candidat) LIKE UPPER('%%X%%') LIMIT 1) AND UPPER(candidat) NOT LIKE UPPER('%%X%%');\n", view))
	prompt.WriteString(fmt.Sprintf("D. Élu de X: SELECT candidat, parti_standardized, voix FROM %s WHERE est_elu = 1 AND UPPER(circonscription) = UPPER('X');\n", view))
	prompt.WriteString(fmt.Sprintf("E. Statistiques régionales: SELECT SUM(inscrits) AS inscrits, SUM(votants) AS votants, SUM(bulletins_nuls) AS bulletins_nuls, SUM(bulletins_blancs) AS bulletins_blancs, SUM(suffrages_exprimes) AS suffrages_exprimes, ROUND(100.0 * SUM(votants) / NULLIF(SUM(inscrits), 0), 2) AS taux_participation FROM %s WHERE UPPER(region) = UPPER('X');\n\n", view))

	if c.SuggestedView != "" && c.SuggestedView != view {
		prompt.WriteString(fmt.Sprintf("VUE CONSEILLÉE pour cette question: %s\n\n", c.SuggestedView))
	}

	if c.ResolvedValue != "" {
		column := c.ResolvedColumn
		if column == "" {
			column = "la colonne la plus adaptée"
		}
		prompt.WriteString(fmt.Sprintf("NOTE : L'utilisateur a sélectionné '%s'. Utilise cette valeur exacte dans la clause WHERE sur %s.\n\n",
			c.ResolvedValue, column))
	}

	if c.Feedback != "" {
		prompt.WriteString(fmt.Sprintf("CORRIGE CETTE ERREUR PRÉCÉDENTE : %s\n\n", c.Feedback))
	}

	prompt.WriteString("SQL pur uniquement.")
	return prompt.String()
}

// BuildSQLPrompt creates the user turn for query generation.
func BuildSQLPrompt(question, resolvedValue string) string {
	if resolvedValue != "" {
		return fmt.Sprintf("Question : %s\nGénère le SQL pour le choix : '%s'. Filtre sur la colonne adéquate.", question, resolvedValue)
	}
	return fmt.Sprintf("Question : %s", question)
}

func formatColumnAliases(aliases map[string][]string) string {
	columns := make([]string, 0, len(aliases))
	for col, words := range aliases {
		if len(words) > 0 {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)

	var sb strings.Builder
	for _, col := range columns {
		sb.WriteString(fmt.Sprintf("- %s ← %s\n", col, strings.Join(aliases[col], ", ")))
	}
	return sb.String()
}
