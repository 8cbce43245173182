package testhelpers

import (
	"testing"

	"github.com/ekaya-inc/election-assistant/pkg/schema"
)

// ElectionSchemaJSON is a compact schema source matching the seeded election fixture.
const ElectionSchemaJSON = `{
  "database_info": {
    "name": "election_ci_test",
    "canonical_view": "vw_results_clean",
    "statistics": {"total_elus": 255, "total_partis": 32, "total_candidatures": 2431}
  },
  "allowed_views": [
    {"view_name": "vw_results_clean", "description": "Résultats nettoyés"},
    {"view_name": "vw_winners", "description": "Candidats élus"}
  ],
  "allowed_tables": [{"table_name": "circonscriptions"}],
  "column_descriptions": {
    "region": "Région administrative",
    "circonscription": "Libellé de la circonscription",
    "candidat": "Nom du candidat",
    "parti_standardized": "Sigle du parti",
    "voix": "Nombre de voix",
    "est_elu": "1 si élu"
  },
  "column_aliases": {"voix": ["votes", "suffrages"]},
  "common_aliases": {
    "partis": {
      "RHDP": ["RHDP", "HOUPHOUETISTES"],
      "PDCI-RDA": ["PDCI"],
      "FPI": ["FRONT POPULAIRE IVOIRIEN"]
    },
    "regions": {
      "LOH-DJIBOUA": ["LOH DJIBOUA"]
    }
  },
  "security_rules": {
    "forbidden_keywords": ["DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "TRUNCATE", "CREATE", "INDEPENDANT"],
    "auto_limit": 100,
    "max_rows": 500
  }
}`

// ElectionRegistry parses ElectionSchemaJSON or fails the test.
func ElectionRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Parse([]byte(ElectionSchemaJSON), "json")
	if err != nil {
		t.Fatalf("failed to parse election schema fixture: %v", err)
	}
	return reg
}
