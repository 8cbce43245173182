package services

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

const (
	// maxCandidatesPerColumn caps fuzzy matches kept from each scanned column.
	maxCandidatesPerColumn = 3
	// maxEntityWords caps the length of a term captured after a marker word.
	maxEntityWords = 4
)

// entityPattern is a marker phrase that introduces an entity term.
type entityPattern struct {
	marker *regexp.Regexp
	column models.EntityColumn
	// lastFirst scans occurrences from the end of the question. Generic
	// prepositions usually introduce the place at the end of a sentence.
	lastFirst bool
}

// entityPatterns are tried in order; the first that yields a term wins.
var entityPatterns = []entityPattern{
	{marker: regexp.MustCompile(`\bREGIONS?\b[:\s]+`), column: models.ColumnRegion},
	{marker: regexp.MustCompile(`\bCOMMUNES?\s+`), column: models.ColumnCirconscription},
	{marker: regexp.MustCompile(`\bCIRCONSCRIPTIONS?\b[:\s]+`), column: models.ColumnCirconscription},
	{marker: regexp.MustCompile(`\bCANDIDATE?S?\b[:\s]+`), column: models.ColumnCandidat},
	{marker: regexp.MustCompile(`\b(?:M\.|MME\.?|MONSIEUR|MADAME)\s*`), column: models.ColumnCandidat},
	{marker: regexp.MustCompile(`\bA\s+`), column: models.ColumnCirconscription, lastFirst: true},
	{marker: regexp.MustCompile(`\bPOUR\s+`), column: models.ColumnCirconscription, lastFirst: true},
}

// leadingArticles are dropped between a marker and the term.
var leadingArticles = map[string]struct{}{
	"LE": {}, "LA": {}, "LES": {}, "DE": {}, "DU": {}, "DES": {}, "L": {}, "D": {},
}

// phraseStops end a captured term.
var phraseStops = map[string]struct{}{
	"A": {}, "AU": {}, "AUX": {}, "ET": {}, "OU": {}, "EN": {}, "DANS": {}, "SUR": {},
	"POUR": {}, "AVEC": {}, "PAR": {}, "QUI": {}, "QUE": {}, "QUEL": {}, "QUELLE": {},
	"QUELS": {}, "QUELLES": {}, "EST": {}, "SONT": {}, "ONT": {}, "LORS": {}, "DE": {},
	"DU": {}, "DES": {}, "LE": {}, "LA": {}, "LES": {}, "COMBIEN": {}, "ELECTIONS": {},
	"LEGISLATIVES": {}, "RESULTATS": {},
}

// auxiliaryParticiples follow the verb "a" rather than the preposition "à",
// as in "qui a gagné"; such occurrences do not introduce a place.
var auxiliaryParticiples = map[string]struct{}{
	"GAGNE": {}, "OBTENU": {}, "ETE": {}, "EU": {}, "REMPORTE": {}, "FAIT": {},
	"RECU": {}, "ELU": {}, "PERDU": {}, "VOTE": {}, "RECUEILLI": {},
}

// fallbackStopWords are removed before the last remaining word is taken as the term.
var fallbackStopWords = map[string]struct{}{
	"DANS": {}, "POUR": {}, "AVEC": {}, "SUR": {}, "AUX": {}, "DES": {}, "DU": {}, "DE": {},
	"LA": {}, "LE": {}, "LES": {}, "EST": {}, "A": {}, "ET": {}, "RESULTATS": {}, "ELECTIONS": {},
}

const tokenPunctuation = ",;:.!?()\"«»"

// Disambiguator detects an entity reference in a question and fuzzy-matches
// it against the values of the canonical view.
type Disambiguator interface {
	// Disambiguate returns Resolved for exactly one distinct match, Choices
	// for two or more, and None otherwise. Lookup failures are skipped.
	Disambiguate(ctx context.Context, question string) models.DisambiguationOutcome
}

type disambiguator struct {
	executor datasource.QueryExecutor
	view     string
	logger   *zap.Logger
}

// NewDisambiguator creates a Disambiguator that searches view through executor.
func NewDisambiguator(executor datasource.QueryExecutor, view string, logger *zap.Logger) Disambiguator {
	return &disambiguator{
		executor: executor,
		view:     view,
		logger:   logger.Named("disambiguator"),
	}
}

var _ Disambiguator = (*disambiguator)(nil)

func (d *disambiguator) Disambiguate(ctx context.Context, question string) models.DisambiguationOutcome {
	term, column := ExtractEntity(question)
	if term == "" {
		return models.NoDisambiguation()
	}

	columns := models.EntityColumns
	if column != "" {
		columns = []models.EntityColumn{column}
	}

	seen := make(map[models.EntityColumn]map[string]struct{}, len(columns))
	var candidates []models.DisambiguationCandidate
	for _, col := range columns {
		values, err := d.executor.FindSimilarValues(ctx, d.view, string(col), term, maxCandidatesPerColumn)
		if err != nil {
			d.logger.Warn("Entity lookup failed, skipping column",
				zap.String("column", string(col)),
				zap.String("term", term),
				zap.Error(err))
			continue
		}
		if len(values) > maxCandidatesPerColumn {
			values = values[:maxCandidatesPerColumn]
		}
		for _, v := range values {
			if seen[col] == nil {
				seen[col] = make(map[string]struct{})
			}
			if _, dup := seen[col][v]; dup {
				continue
			}
			seen[col][v] = struct{}{}
			candidates = append(candidates, models.NewDisambiguationCandidate(v, col))
		}
	}

	d.logger.Debug("Entity lookup complete",
		zap.String("term", term),
		zap.String("presumed_column", string(column)),
		zap.Int("candidates", len(candidates)))

	switch len(candidates) {
	case 0:
		return models.NoDisambiguation()
	case 1:
		return models.Resolved(term, candidates[0])
	default:
		return models.Choices(candidates)
	}
}

// ExtractEntity finds the entity term of question and its presumed column.
// The column is empty when the term comes from the last-word fallback.
func ExtractEntity(question string) (string, models.EntityColumn) {
	folded := strings.TrimSpace(textutil.Fold(question))
	if folded == "" {
		return "", ""
	}

	for _, p := range entityPatterns {
		locs := p.marker.FindAllStringIndex(folded, -1)
		if p.lastFirst {
			for i, j := 0, len(locs)-1; i < j; i, j = i+1, j-1 {
				locs[i], locs[j] = locs[j], locs[i]
			}
		}
		for _, loc := range locs {
			words := capturePhrase(folded[loc[1]:])
			if len(words) == 0 {
				continue
			}
			if p.lastFirst {
				if _, aux := auxiliaryParticiples[words[0]]; aux {
					continue
				}
			}
			return strings.Join(words, " "), p.column
		}
	}

	return fallbackTerm(folded), ""
}

// capturePhrase collects up to maxEntityWords words after leading articles,
// stopping at connectives, numbers and punctuation.
func capturePhrase(rest string) []string {
	tokens := strings.Fields(rest)

	i := 0
	for i < len(tokens) {
		tok := strings.Trim(tokens[i], tokenPunctuation)
		if _, article := leadingArticles[tok]; article {
			i++
			continue
		}
		if elided := stripElision(tok); elided != tok {
			tokens[i] = elided
		}
		break
	}

	var words []string
	for ; i < len(tokens) && len(words) < maxEntityWords; i++ {
		raw := tokens[i]
		word := strings.TrimRight(strings.TrimLeft(raw, tokenPunctuation), tokenPunctuation)
		if word == "" || strings.IndexFunc(word, unicode.IsDigit) >= 0 {
			break
		}
		if _, stop := phraseStops[word]; stop {
			break
		}
		words = append(words, word)
		if strings.TrimRight(raw, tokenPunctuation) != raw {
			break
		}
	}
	return words
}

// stripElision turns "D'ABIDJAN" or "L'AGNEBY" into the bare name.
func stripElision(tok string) string {
	for _, prefix := range []string{"D'", "L'", "D’", "L’"} {
		if strings.HasPrefix(tok, prefix) && len(tok) > len(prefix) {
			return tok[len(prefix):]
		}
	}
	return tok
}

func fallbackTerm(folded string) string {
	var last string
	for _, tok := range strings.Fields(strings.ReplaceAll(folded, "?", " ")) {
		word := strings.Trim(tok, tokenPunctuation)
		if _, stop := fallbackStopWords[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		last = word
	}
	return last
}
