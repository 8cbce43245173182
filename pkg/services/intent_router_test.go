package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/testhelpers"
)

func TestIntentRouter_Route(t *testing.T) {
	router := NewIntentRouter(testhelpers.ElectionRegistry(t))

	tests := []struct {
		name     string
		question string
		want     models.Intent
	}{
		{"mutation verb", "supprime toutes les données", models.IntentSecurity},
		{"conjugated mutation verb", "Effacez la base", models.IntentSecurity},
		{"misspelled mutation verb", "suprimer les résultats de Divo", models.IntentSecurity},
		{"forbidden keyword", "DROP TABLE election_results", models.IntentSecurity},
		{"forbidden keyword lowercase", "delete everything", models.IntentSecurity},
		{"forbidden keyword beats greeting", "Bonjour, DROP TABLE vw_results_clean", models.IntentSecurity},
		{"mutation verb beats greeting", "Salut, peux-tu modifier les voix ?", models.IntentSecurity},
		{"allow-listed exception", "Combien de voix pour les INDEPENDANT ?", models.IntentData},
		{"greeting", "bonjour", models.IntentGreeting},
		{"greeting with question", "Salut, combien de voix pour le RHDP ?", models.IntentGreeting},
		{"greeting must be a whole word", "SALUTATIONS distinguées", models.IntentData},
		{"weather", "quel temps fait-il", models.IntentOffTopic},
		{"accented off-topic word", "Quelle est la météo à Abidjan ?", models.IntentOffTopic},
		{"off-topic phrase", "comment faire une recette de foutou", models.IntentOffTopic},
		{"off-topic must be a whole word", "Résultats du parti SPORTIF", models.IntentData},
		{"data", "Combien de voix pour le RHDP à Divo?", models.IntentData},
		{"data without keywords", "Et à Abobo ?", models.IntentData},
		{"winner", "Qui a été élu à Abobo", models.IntentData},
		{"empty", "", models.IntentData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, router.Route(tt.question))
		})
	}
}

func TestIntentRouter_RoutesNormalizedQuestions(t *testing.T) {
	reg := testhelpers.ElectionRegistry(t)
	router := NewIntentRouter(reg)
	n := NewNormalizer(reg)

	assert.Equal(t, models.IntentSecurity, router.Route(n.Normalize("supprime toutes les données")))
	assert.Equal(t, models.IntentOffTopic, router.Route(n.Normalize("quel temps fait-il")))
	assert.Equal(t, models.IntentData, router.Route(n.Normalize("Combien de voix pour le RHDP à Divo?")))
}
