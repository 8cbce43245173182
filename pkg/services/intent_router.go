package services

import (
	"strings"

	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

// dangerVerbs are French data-mutation verbs matched as substrings of the
// folded question, so conjugated and misspelled forms are caught too.
var dangerVerbs = []string{
	"SUPPRIMER", "SUPPRIME", "SUPRIMER", "SUPRIME",
	"EFFACE", "EFFACER", "DETRUIRE", "DETRUIT",
	"MODIFIER", "MODIFIE", "AJOUTER", "AJOUTE",
	"CHANGER", "CHANGE", "REMPLACE", "REMPLACER",
	"CREE", "CREER", "VIDER", "NETTOYER", "ENLEVER", "RETIRER",
}

var greetingWords = []string{"BONJOUR", "BONSOIR", "SALUT", "HELLO", "COUCOU"}

// offTopicTerms are matched as whole words or phrases of the folded question.
var offTopicTerms = []string{
	"METEO", "CLIMAT", "FOOTBALL", "SPORT", "HISTOIRE", "GEOGRAPHIE",
	"SCIENCE", "TECHNOLOGIE", "MUSIQUE", "CINEMA", "FILM", "SANTE",
	"CUISINE", "RECETTE", "VOYAGE", "VACANCES", "POLITIQUE INTERNATIONALE",
	"ECONOMIE MONDIALE", "ENVIRONNEMENT GLOBAL", "TEMPS", "PRESIDENT", "COMMENT FAIRE",
}

// IntentRouter assigns a handling category to a question.
type IntentRouter interface {
	// Route checks SECURITY, GREETING and OFFTOPIC in that order and
	// defaults to DATA.
	Route(question string) models.Intent
}

type intentRouter struct {
	registry *schema.Registry
}

// NewIntentRouter creates a router using the registry's forbidden keywords.
func NewIntentRouter(registry *schema.Registry) IntentRouter {
	return &intentRouter{registry: registry}
}

var _ IntentRouter = (*intentRouter)(nil)

func (r *intentRouter) Route(question string) models.Intent {
	folded := textutil.Fold(question)

	if r.isDangerous(folded) {
		return models.IntentSecurity
	}
	for _, w := range greetingWords {
		if textutil.ContainsWholeWord(folded, w) {
			return models.IntentGreeting
		}
	}
	for _, term := range offTopicTerms {
		if textutil.ContainsWholeWord(folded, term) {
			return models.IntentOffTopic
		}
	}
	return models.IntentData
}

func (r *intentRouter) isDangerous(folded string) bool {
	for _, word := range textutil.LetterWords(folded) {
		if r.registry.IsForbidden(word) {
			return true
		}
	}
	for _, verb := range dangerVerbs {
		if strings.Contains(folded, verb) {
			return true
		}
	}
	return false
}
