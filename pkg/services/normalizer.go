package services

import (
	"strings"

	"github.com/ekaya-inc/election-assistant/pkg/schema"
	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

// maxNormalizePasses bounds substitution rounds. The registry rejects alias
// tables whose canonical forms contain a synonym, so the second pass is
// normally a no-op.
const maxNormalizePasses = 3

// Normalizer canonicalizes party and region synonyms in a question.
type Normalizer interface {
	// Normalize upper-cases text and replaces whole-word synonyms with their
	// canonical form, longest synonym first.
	Normalize(text string) string
}

type normalizer struct {
	pairs []schema.AliasPair
}

// NewNormalizer creates a Normalizer over the registry's alias pairs.
func NewNormalizer(registry *schema.Registry) Normalizer {
	return &normalizer{pairs: registry.AliasPairs()}
}

var _ Normalizer = (*normalizer)(nil)

func (n *normalizer) Normalize(text string) string {
	out := strings.ToUpper(strings.TrimSpace(text))
	for pass := 0; pass < maxNormalizePasses; pass++ {
		next := out
		for _, p := range n.pairs {
			next = textutil.ReplaceWholeWord(next, p.Synonym, p.Canonical)
		}
		if next == out {
			break
		}
		out = next
	}
	return out
}
