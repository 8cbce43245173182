package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

// GreetingFallback is returned when the oracle cannot produce a greeting.
const GreetingFallback = "Bonjour ! Assistant électoral 2025. Analyse des résultats législatifs."

// BuildGreetingInstructions creates the greeting instructions. Statistics are
// listed in key order so identical datasets produce identical instructions.
func BuildGreetingInstructions(description string, statistics map[string]any) string {
	var prompt strings.Builder

	prompt.WriteString("Tu es l'assistant des élections législatives 2025. Réponds en 1 phrase maximum, amical et professionnel.\n")
	if description != "" {
		prompt.WriteString(fmt.Sprintf("Jeu de données: %s\n", description))
	}

	if len(statistics) > 0 {
		keys := make([]string, 0, len(statistics))
		for k := range statistics {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		prompt.WriteString("Chiffres clés:\n")
		for _, k := range keys {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", k, textutil.FormatCell(statistics[k])))
		}
	}
	prompt.WriteString("Invite l'utilisateur à poser une question sur les résultats.")
	return prompt.String()
}
