package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/prompts"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
	sqlpkg "github.com/ekaya-inc/election-assistant/pkg/sql"
	"github.com/ekaya-inc/election-assistant/pkg/textutil"
)

// sqlStopSequences halt generation at the end of the first statement.
var sqlStopSequences = []string{";", "Note:"}

// GeneratorConfig holds the oracle settings for query generation.
type GeneratorConfig struct {
	Model     string
	MaxTokens int
	// Dialect is the engine display name embedded in the instructions.
	Dialect string
}

// QueryGenerator turns a question into a single SELECT statement.
type QueryGenerator interface {
	// Generate makes one oracle call. feedback is the previous attempt's
	// sanitized engine error, or "" on the first attempt. When the oracle
	// yields no SELECT, a resolved entity falls back to a literal lookup
	// against the canonical view; without one, ErrGeneration is returned.
	Generate(ctx context.Context, question string, resolved *models.ResolvedEntity, feedback string) (*models.GenerationAttempt, error)
}

type queryGenerator struct {
	registry *schema.Registry
	oracle   llm.TextGenerator
	cfg      GeneratorConfig
	logger   *zap.Logger
}

// NewQueryGenerator creates a QueryGenerator.
func NewQueryGenerator(registry *schema.Registry, oracle llm.TextGenerator, cfg GeneratorConfig, logger *zap.Logger) QueryGenerator {
	return &queryGenerator{
		registry: registry,
		oracle:   oracle,
		cfg:      cfg,
		logger:   logger.Named("query-generator"),
	}
}

var _ QueryGenerator = (*queryGenerator)(nil)

func (g *queryGenerator) Generate(ctx context.Context, question string, resolved *models.ResolvedEntity, feedback string) (*models.GenerationAttempt, error) {
	sqlCtx := prompts.SQLContext{
		Dialect:            g.cfg.Dialect,
		ColumnDescriptions: g.registry.ColumnDescriptions(),
		ColumnAliases:      g.registry.ColumnAliases(),
		CanonicalView:      g.registry.CanonicalView(),
		AllowedObjects:     g.registry.AllowedObjects(),
		SuggestedView:      SuggestView(question, g.registry.AllowedViews()),
		Feedback:           feedback,
	}
	var resolvedValue string
	if resolved != nil {
		resolvedValue = resolved.Value
		sqlCtx.ResolvedValue = resolved.Value
		sqlCtx.ResolvedColumn = string(resolved.Column)
	}

	attempt := &models.GenerationAttempt{
		Instructions: prompts.BuildSQLInstructions(sqlCtx),
	}

	raw, err := g.oracle.Generate(ctx, attempt.Instructions, prompts.BuildSQLPrompt(question, resolvedValue), llm.GenerateOptions{
		Operation:   llm.OperationSQL,
		Model:       g.cfg.Model,
		Temperature: 0,
		MaxTokens:   g.cfg.MaxTokens,
		Stop:        sqlStopSequences,
	})
	if err != nil {
		g.logger.Warn("Oracle call failed for query generation",
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		attempt.RawOutput = raw
		attempt.QueryText = sqlpkg.ExtractSelect(llm.StripThinking(raw))
	}

	if attempt.QueryText != "" {
		g.logger.Debug("Generated query", zap.String("sql", logging.SanitizeQuery(attempt.QueryText)))
		return attempt, nil
	}

	if resolved == nil || strings.TrimSpace(resolved.Value) == "" {
		if err != nil {
			return attempt, fmt.Errorf("%w: %v", apperrors.ErrGeneration, err)
		}
		return attempt, fmt.Errorf("%w: oracle output contained no SELECT statement", apperrors.ErrGeneration)
	}

	attempt.QueryText = g.fallbackQuery(resolved)
	attempt.UsedFallback = true
	g.logger.Info("Using fallback query for resolved entity",
		zap.String("column", string(resolved.Column)),
		zap.String("sql", logging.SanitizeQuery(attempt.QueryText)))
	return attempt, nil
}

// fallbackQuery selects every row of the canonical view matching the entity.
func (g *queryGenerator) fallbackQuery(resolved *models.ResolvedEntity) string {
	column := resolved.Column
	if !column.IsValid() {
		column = models.ColumnCirconscription
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		g.registry.CanonicalView(), sqlpkg.QuoteIdentifier(string(column)), sqlpkg.QuoteLiteral(resolved.Value))
}

// viewHint maps question keywords to a fragment of a view name.
type viewHint struct {
	keywords []string
	fragment []string
}

var viewHints = []viewHint{
	{keywords: []string{"ELU", "ELUS", "ELUE", "GAGNANT", "GAGNANTS", "GAGNE", "VAINQUEUR", "WINNER", "WINNERS"}, fragment: []string{"winner", "elu"}},
	{keywords: []string{"PARTICIPATION", "TAUX", "ABSTENTION", "TURNOUT"}, fragment: []string{"participation", "turnout"}},
	{keywords: []string{"PARTI", "PARTIS", "PARTY", "SIEGES"}, fragment: []string{"party", "partis"}},
	{keywords: []string{"REGION", "REGIONS", "REGIONAL", "REGIONALES"}, fragment: []string{"region"}},
}

// SuggestView returns an allow-listed view matching the question's topic, or
// "" when there is a single view or no hint applies.
func SuggestView(question string, views []string) string {
	if len(views) < 2 {
		return ""
	}
	words := textutil.Words(textutil.Fold(question))
	present := make(map[string]struct{}, len(words))
	for _, w := range words {
		present[w] = struct{}{}
	}

	for _, hint := range viewHints {
		matched := false
		for _, kw := range hint.keywords {
			if _, ok := present[kw]; ok {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, view := range views {
			lower := strings.ToLower(view)
			for _, frag := range hint.fragment {
				if strings.Contains(lower, frag) {
					return view
				}
			}
		}
	}
	return ""
}
