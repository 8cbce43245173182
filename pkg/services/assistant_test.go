package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/testhelpers"
)

const divoSummary = "Le RHDP a obtenu 12450 voix dans la commune de Divo."

// fakeRecorder captures pipeline observations.
type fakeRecorder struct {
	mu              sync.Mutex
	intents         []models.Intent
	disambiguations []models.DisambiguationStatus
	attempts        []int
	executions      []apperrors.ErrorKind
}

var _ PipelineRecorder = (*fakeRecorder)(nil)

func (r *fakeRecorder) ObserveQuestion(intent models.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
}

func (r *fakeRecorder) ObserveDisambiguation(status models.DisambiguationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disambiguations = append(r.disambiguations, status)
}

func (r *fakeRecorder) ObserveGenerationAttempt(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func (r *fakeRecorder) ObserveExecution(kind apperrors.ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, kind)
}

// scriptedOracle answers SQL calls from sqlReplies in order and the other
// operations with fixed text.
func scriptedOracle(sqlReplies ...string) *llm.MockTextGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return &llm.MockTextGenerator{
		GenerateFunc: func(_ context.Context, _, _ string, opts llm.GenerateOptions) (string, error) {
			switch opts.Operation {
			case llm.OperationSQL:
				mu.Lock()
				defer mu.Unlock()
				if n >= len(sqlReplies) {
					return "", nil
				}
				reply := sqlReplies[n]
				n++
				return reply, nil
			case llm.OperationNarrative:
				return divoSummary, nil
			default:
				return "Bonjour ! Posez-moi une question sur les législatives 2025.", nil
			}
		},
	}
}

type queryOutcome struct {
	rows []map[string]any
	err  error
}

// scriptedExecutor answers Query calls from outcomes in order, repeating the
// last one, and resolves entity lookups for DIVO and ABOBO.
func scriptedExecutor(outcomes ...queryOutcome) *datasource.MockQueryExecutor {
	var (
		mu sync.Mutex
		n  int
	)
	return &datasource.MockQueryExecutor{
		QueryFunc: func(context.Context, string, int) (*datasource.QueryExecutionResult, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(outcomes) == 0 {
				return &datasource.QueryExecutionResult{}, nil
			}
			o := outcomes[len(outcomes)-1]
			if n < len(outcomes) {
				o = outcomes[n]
			}
			n++
			if o.err != nil {
				return nil, o.err
			}
			var cols []datasource.ColumnInfo
			if len(o.rows) > 0 {
				for name := range o.rows[0] {
					cols = append(cols, datasource.ColumnInfo{Name: name})
				}
			}
			return &datasource.QueryExecutionResult{Columns: cols, Rows: o.rows, RowCount: len(o.rows)}, nil
		},
		FindSimilarValuesFunc: func(_ context.Context, _, column, term string, _ int) ([]string, error) {
			if column != string(models.ColumnCirconscription) {
				return nil, nil
			}
			switch term {
			case "DIVO":
				return []string{"DIVO, COMMUNE", "DIVO, SOUS-PREFECTURE"}, nil
			case "ABOBOO", "ABOBO":
				return []string{"ABOBO"}, nil
			}
			return nil, nil
		},
	}
}

type pipelineFixture struct {
	oracle    *llm.MockTextGenerator
	executor  *datasource.MockQueryExecutor
	recorder  *fakeRecorder
	assistant Assistant
}

func newPipeline(t *testing.T, oracle *llm.MockTextGenerator, executor *datasource.MockQueryExecutor) *pipelineFixture {
	t.Helper()
	reg := testhelpers.ElectionRegistry(t)
	logger := zap.NewNop()
	recorder := &fakeRecorder{}

	a := NewAssistant(AssistantDeps{
		Normalizer:    NewNormalizer(reg),
		Router:        NewIntentRouter(reg),
		Disambiguator: NewDisambiguator(executor, reg.CanonicalView(), logger),
		Generator:     NewQueryGenerator(reg, oracle, GeneratorConfig{Model: "mistral", MaxTokens: 256, Dialect: "DuckDB"}, logger),
		Gate:          NewExecutionGate(reg, executor, logger),
		Greeter:       NewGreetingResponder(reg, oracle, GreetingConfig{Model: "mistral", MaxTokens: 64, CacheSize: 100}, logger),
		Summarizer:    NewSummarizer(oracle, SummarizerConfig{Model: "mistral", MaxTokens: 128}, logger),
		Recorder:      recorder,
	}, logger)

	return &pipelineFixture{oracle: oracle, executor: executor, recorder: recorder, assistant: a}
}

func TestAssistant_AmbiguousPlaceThenSelection(t *testing.T) {
	const divoSQL = "SELECT SUM(voix) AS total_voix FROM vw_results_clean WHERE parti_standardized = 'RHDP' AND circonscription = 'DIVO, COMMUNE'"
	p := newPipeline(t,
		scriptedOracle(divoSQL),
		scriptedExecutor(queryOutcome{rows: []map[string]any{{"total_voix": float64(12450)}}}))
	ctx := context.Background()

	// Turn 1: the place is ambiguous, so choices come back and nothing runs.
	first, err := p.assistant.Ask(ctx, models.AskRequest{Question: "Combien de voix pour le RHDP à Divo?"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentData, first.Intent)
	assert.True(t, first.NeedsSelection())
	require.Len(t, first.Choices, 2)
	assert.Equal(t, "DIVO, COMMUNE", first.Choices[0].Value)
	assert.Equal(t, "DIVO, SOUS-PREFECTURE", first.Choices[1].Value)
	assert.Equal(t, apperrors.MsgNeedsSelection, first.Message)
	assert.Empty(t, first.QueryText)
	assert.Zero(t, first.Attempts)
	assert.Zero(t, p.oracle.CallCount())
	assert.Zero(t, p.executor.QueryCallCount())
	assert.NotEmpty(t, first.RequestID)

	// Turn 2: the caller picks the commune.
	second, err := p.assistant.Ask(ctx, models.AskRequest{
		Question:       "Combien de voix pour le RHDP à Divo?",
		ResolvedEntity: &models.ResolvedEntity{Value: first.Choices[0].Value, Column: first.Choices[0].SourceColumn},
	})
	require.NoError(t, err)

	assert.Equal(t, apperrors.KindNone, second.ErrorKind)
	assert.Empty(t, second.Choices)
	assert.Equal(t, 1, second.Attempts)
	assert.Equal(t, divoSQL, second.QueryText)
	assert.Contains(t, second.QueryText, "SUM(")
	assert.Equal(t, []map[string]any{{"total_voix": float64(12450)}}, second.Rows)
	assert.Equal(t, []string{"total_voix"}, second.Columns)
	assert.Equal(t, 1, p.executor.LookupCallCount(), "a resolved entity skips disambiguation")

	sqlCall := p.oracle.Calls()[0]
	assert.Contains(t, sqlCall.Prompt, "'DIVO, COMMUNE'")
	assert.Contains(t, sqlCall.Instructions, "L'utilisateur a sélectionné 'DIVO, COMMUNE'")

	summary := CollectSummary(p.assistant.Summarize(ctx, second))
	assert.Equal(t, divoSummary, summary)
	assert.Equal(t, 1, p.oracle.CallCount(llm.OperationNarrative))

	assert.Equal(t, []models.Intent{models.IntentData, models.IntentData}, p.recorder.intents)
	assert.Equal(t, []models.DisambiguationStatus{models.DisambiguationChoices}, p.recorder.disambiguations)
	assert.Equal(t, []int{1}, p.recorder.attempts)
	assert.Equal(t, []apperrors.ErrorKind{apperrors.KindNone}, p.recorder.executions)
}

func TestAssistant_ShortCircuitIntents(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		wantIntent  models.Intent
		wantKind    apperrors.ErrorKind
		wantMessage string
	}{
		{"mutation request", "supprime toutes les données", models.IntentSecurity, apperrors.KindSecurity, apperrors.MsgSecurity},
		{"raw statement", "DROP TABLE election_results", models.IntentSecurity, apperrors.KindSecurity, apperrors.MsgSecurity},
		{"weather", "quel temps fait-il", models.IntentOffTopic, apperrors.KindNone, apperrors.MsgOffTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, scriptedOracle("SELECT * FROM vw_results_clean"), scriptedExecutor())

			resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: tt.question})

			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, resp.Intent)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Empty(t, resp.QueryText)
			assert.Zero(t, resp.Attempts)
			assert.Zero(t, p.oracle.CallCount())
			assert.Zero(t, p.executor.QueryCallCount())
			assert.Zero(t, p.executor.LookupCallCount())
			assert.Empty(t, p.recorder.disambiguations)
		})
	}
}

func TestAssistant_Greeting(t *testing.T) {
	p := newPipeline(t, scriptedOracle(), scriptedExecutor())

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: "bonjour"})

	require.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, resp.Intent)
	assert.Equal(t, "Bonjour ! Posez-moi une question sur les législatives 2025.", resp.Message)
	assert.Equal(t, 1, p.oracle.CallCount(llm.OperationGreeting))
	assert.Zero(t, p.oracle.CallCount(llm.OperationSQL))
	assert.Zero(t, p.executor.QueryCallCount())
}

func TestAssistant_EmptyQuestion(t *testing.T) {
	p := newPipeline(t, scriptedOracle(), scriptedExecutor())

	for _, q := range []string{"", "   \n\t"} {
		resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: q})

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, apperrors.ErrEmptyQuestion)
	}
	assert.Empty(t, p.recorder.intents)
}

func TestAssistant_RejectsInjectedEntityHint(t *testing.T) {
	p := newPipeline(t, scriptedOracle("SELECT * FROM vw_results_clean"), scriptedExecutor())

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{
		Question:       "Combien de voix à Divo?",
		ResolvedEntity: &models.ResolvedEntity{Value: "1' OR '1'='1", Column: models.ColumnCirconscription},
	})

	require.NoError(t, err)
	assert.Equal(t, models.IntentSecurity, resp.Intent)
	assert.Equal(t, apperrors.KindSecurity, resp.ErrorKind)
	assert.Equal(t, apperrors.MsgSecurity, resp.Message)
	assert.Zero(t, p.oracle.CallCount())
	assert.Zero(t, p.executor.QueryCallCount())
}

func TestAssistant_InvalidHintColumnIsCleared(t *testing.T) {
	p := newPipeline(t, scriptedOracle("Je ne sais pas."), scriptedExecutor(queryOutcome{rows: []map[string]any{{"voix": int64(10)}}}))

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{
		Question:       "Combien de voix à Divo?",
		ResolvedEntity: &models.ResolvedEntity{Value: "DIVO, COMMUNE", Column: "password"},
	})

	require.NoError(t, err)
	assert.Equal(t, apperrors.KindNone, resp.ErrorKind)
	assert.Equal(t, `SELECT * FROM vw_results_clean WHERE "circonscription" = 'DIVO, COMMUNE'`, resp.QueryText)
	assert.Contains(t, p.oracle.Calls()[0].Instructions, "clause WHERE sur la colonne la plus adaptée")
}

func TestAssistant_AutoCorrection(t *testing.T) {
	p := newPipeline(t,
		scriptedOracle("SELECT candidat FROM vw_results_clean WHERE est_elu = 1 AND circonscription = 'ABOBO'"),
		scriptedExecutor(queryOutcome{rows: []map[string]any{{"candidat": "KOUASSI JEAN"}}}))

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: "Qui a gagné à Aboboo ?"})

	require.NoError(t, err)
	require.NotNil(t, resp.Correction)
	assert.Equal(t, models.Correction{Original: "ABOBOO", Resolved: "ABOBO", Column: models.ColumnCirconscription}, *resp.Correction)
	assert.Empty(t, resp.Choices)
	assert.Equal(t, 1, resp.Attempts)
	assert.Len(t, resp.Rows, 1)

	call := p.oracle.Calls()[0]
	assert.Contains(t, call.Prompt, "Génère le SQL pour le choix : 'ABOBO'.")
	assert.Equal(t, []models.DisambiguationStatus{models.DisambiguationResolved}, p.recorder.disambiguations)
}

func TestAssistant_GenerationFailure(t *testing.T) {
	p := newPipeline(t, scriptedOracle("Je ne peux pas répondre à cette question."), scriptedExecutor())

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: "Quel est le taux de participation"})

	require.NoError(t, err)
	assert.Equal(t, apperrors.KindGeneration, resp.ErrorKind)
	assert.Equal(t, apperrors.MsgGeneration, resp.Message)
	assert.Equal(t, 1, resp.Attempts)
	assert.Empty(t, resp.QueryText)
	assert.Zero(t, p.executor.QueryCallCount())
	assert.Empty(t, p.recorder.executions)
}

func TestAssistant_RetryPolicy(t *testing.T) {
	const (
		firstSQL  = "SELECT nom, SUM(voix) FROM vw_results_clean GROUP BY nom"
		secondSQL = "SELECT candidat, SUM(voix) FROM vw_results_clean GROUP BY candidat"
	)
	columnErr := errors.New(`Binder Error: Referenced column "nom" not found in FROM clause!`)
	syntaxErr := errors.New(`Parser Error: syntax error at or near "GROUPE"`)
	catalogErr := errors.New(`Catalog Error: Table with name resultats does not exist!`)
	row := []map[string]any{{"candidat": "AKA", "voix": int64(3)}}

	tests := []struct {
		name         string
		sqlReplies   []string
		outcomes     []queryOutcome
		wantAttempts int
		wantQueries  int
		wantKind     apperrors.ErrorKind
		wantMessage  string
		wantRows     int
		wantFeedback string
		wantQuery    string
	}{
		{
			name:         "unknown column then success",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{err: columnErr}, {rows: row}},
			wantAttempts: 2, wantQueries: 2,
			wantKind: apperrors.KindNone, wantRows: 1,
			wantFeedback: columnErr.Error(),
			wantQuery:    secondSQL,
		},
		{
			name:         "syntax error then success",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{err: syntaxErr}, {rows: row}},
			wantAttempts: 2, wantQueries: 2,
			wantKind: apperrors.KindNone, wantRows: 1,
			wantFeedback: syntaxErr.Error(),
			wantQuery:    secondSQL,
		},
		{
			name:         "retry fails too",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{err: syntaxErr}, {err: columnErr}},
			wantAttempts: 2, wantQueries: 2,
			wantKind: apperrors.KindUnknownColumn, wantMessage: apperrors.MsgUnknownColumn,
			wantFeedback: syntaxErr.Error(),
			wantQuery:    secondSQL,
		},
		{
			name:         "retry produces no statement",
			sqlReplies:   []string{firstSQL, "Désolé."},
			outcomes:     []queryOutcome{{err: columnErr}},
			wantAttempts: 2, wantQueries: 1,
			wantKind: apperrors.KindUnknownColumn, wantMessage: apperrors.MsgUnknownColumn,
			wantFeedback: columnErr.Error(),
			wantQuery:    firstSQL,
		},
		{
			name:         "other engine failure is terminal",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{err: catalogErr}, {rows: row}},
			wantAttempts: 1, wantQueries: 1,
			wantKind: apperrors.KindExecutionFailed, wantMessage: apperrors.MsgNoResults,
			wantQuery: firstSQL,
		},
		{
			name:         "timeout is terminal",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{err: context.DeadlineExceeded}, {rows: row}},
			wantAttempts: 1, wantQueries: 1,
			wantKind: apperrors.KindExecutionFailed, wantMessage: apperrors.MsgNoResults,
			wantQuery: firstSQL,
		},
		{
			name:         "empty result is terminal",
			sqlReplies:   []string{firstSQL, secondSQL},
			outcomes:     []queryOutcome{{rows: []map[string]any{}}, {rows: row}},
			wantAttempts: 1, wantQueries: 1,
			wantKind: apperrors.KindNoResults, wantMessage: apperrors.MsgNoResults,
			wantQuery: firstSQL,
		},
		{
			name:         "blocked query is terminal",
			sqlReplies:   []string{"SELECT * FROM users", secondSQL},
			outcomes:     []queryOutcome{{rows: row}},
			wantAttempts: 1, wantQueries: 0,
			wantKind: apperrors.KindSecurity, wantMessage: apperrors.MsgSecurity,
			wantQuery: "SELECT * FROM users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, scriptedOracle(tt.sqlReplies...), scriptedExecutor(tt.outcomes...))

			resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: "Combien de voix par candidat ?"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantAttempts, resp.Attempts)
			assert.LessOrEqual(t, resp.Attempts, models.MaxGenerationAttempts)
			assert.Equal(t, tt.wantAttempts, p.oracle.CallCount(llm.OperationSQL))
			assert.Equal(t, tt.wantQueries, p.executor.QueryCallCount())
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Len(t, resp.Rows, tt.wantRows)
			assert.Equal(t, tt.wantQuery, resp.QueryText)

			if tt.wantFeedback != "" {
				calls := p.oracle.Calls()
				require.Len(t, calls, 2)
				first, retry := calls[0].Instructions, calls[1].Instructions
				assert.Contains(t, retry, "CORRIGE CETTE ERREUR PRÉCÉDENTE : "+tt.wantFeedback)
				assert.NotContains(t, first, "CORRIGE CETTE ERREUR")
				for _, line := range strings.Split(first, "\n") {
					assert.Contains(t, retry, line)
				}
				assert.Equal(t, calls[0].Prompt, calls[1].Prompt)
			}

			// Raw engine text never reaches the user.
			for _, engineErr := range []error{columnErr, syntaxErr, catalogErr} {
				assert.NotContains(t, resp.Message, engineErr.Error())
			}
		})
	}
}

func TestAssistant_RecordsEachAttempt(t *testing.T) {
	p := newPipeline(t,
		scriptedOracle("SELECT nom FROM vw_results_clean", "SELECT candidat FROM vw_results_clean"),
		scriptedExecutor(
			queryOutcome{err: errors.New(`Binder Error: Referenced column "nom" not found`)},
			queryOutcome{rows: []map[string]any{}},
		))

	resp, err := p.assistant.Ask(context.Background(), models.AskRequest{Question: "Liste des candidats"})
	require.NoError(t, err)

	assert.Equal(t, apperrors.KindNoResults, resp.ErrorKind)
	assert.Equal(t, []int{1, 2}, p.recorder.attempts)
	assert.Equal(t, []apperrors.ErrorKind{apperrors.KindUnknownColumn, apperrors.KindNoResults}, p.recorder.executions)
}

func TestAssistant_SummarizeEmptyResult(t *testing.T) {
	p := newPipeline(t, scriptedOracle(), scriptedExecutor())

	summary := CollectSummary(p.assistant.Summarize(context.Background(), &models.AskResponse{Question: "Q"}))

	assert.Equal(t, "Aucune donnée ne correspond à votre recherche.", summary)
	assert.Zero(t, p.oracle.CallCount())
}
