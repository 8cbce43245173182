package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	sqlpkg "github.com/ekaya-inc/election-assistant/pkg/sql"
)

// PipelineRecorder receives pipeline outcomes for metrics.
type PipelineRecorder interface {
	ObserveQuestion(intent models.Intent)
	ObserveDisambiguation(status models.DisambiguationStatus)
	ObserveGenerationAttempt(attempt int)
	ObserveExecution(kind apperrors.ErrorKind)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuestion(models.Intent)                      {}
func (nopRecorder) ObserveDisambiguation(models.DisambiguationStatus) {}
func (nopRecorder) ObserveGenerationAttempt(int)                       {}
func (nopRecorder) ObserveExecution(apperrors.ErrorKind)               {}

// Assistant answers one question end to end.
type Assistant interface {
	// Ask runs normalization, routing, disambiguation, generation and
	// execution. Pipeline failures are reported in the response; the error
	// is reserved for invalid requests.
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)

	// Summarize streams a one-sentence narrative for resp's rows. The caller
	// must drain the channel or cancel ctx.
	Summarize(ctx context.Context, resp *models.AskResponse) <-chan string
}

// AssistantDeps are the pipeline stages an Assistant orchestrates.
type AssistantDeps struct {
	Normalizer    Normalizer
	Router        IntentRouter
	Disambiguator Disambiguator
	Generator     QueryGenerator
	Gate          ExecutionGate
	Greeter       GreetingResponder
	Summarizer    Summarizer
	// Recorder is optional.
	Recorder PipelineRecorder
}

type assistant struct {
	deps     AssistantDeps
	recorder PipelineRecorder
	logger   *zap.Logger
}

// NewAssistant creates an Assistant.
func NewAssistant(deps AssistantDeps, logger *zap.Logger) Assistant {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &assistant{
		deps:     deps,
		recorder: recorder,
		logger:   logger.Named("assistant"),
	}
}

var _ Assistant = (*assistant)(nil)

func (a *assistant) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	start := time.Now()
	requestID := uuid.NewString()
	ctx = llm.WithRequestID(ctx, requestID)
	logger := a.logger.With(zap.String("request_id", requestID))

	normalized := a.deps.Normalizer.Normalize(question)
	intent := a.deps.Router.Route(normalized)
	a.recorder.ObserveQuestion(intent)

	resp := &models.AskResponse{
		RequestID:  requestID,
		Question:   question,
		Normalized: normalized,
		Intent:     intent,
	}

	switch intent {
	case models.IntentSecurity:
		logger.Warn("Question blocked by router")
		blockResponse(resp)
		return resp, nil
	case models.IntentGreeting:
		resp.Message = a.deps.Greeter.Respond(ctx, normalized)
		return resp, nil
	case models.IntentOffTopic:
		resp.Message = apperrors.MsgOffTopic
		return resp, nil
	}

	resolved, done := a.resolveEntity(ctx, req.ResolvedEntity, normalized, resp, logger)
	if done {
		return resp, nil
	}

	result, attempts, err := a.generateAndExecute(ctx, normalized, resolved, logger)
	resp.Attempts = attempts
	if result != nil {
		resp.QueryText = result.QueryText
	}

	if err != nil {
		resp.ErrorKind = apperrors.KindOf(err)
		resp.Message = apperrors.UserMessage(resp.ErrorKind)
	} else {
		resp.Columns = result.Columns
		resp.Rows = result.Rows
		resp.Truncated = result.Truncated
		if result.Kind == apperrors.KindNoResults {
			resp.ErrorKind = apperrors.KindNoResults
			resp.Message = apperrors.MsgNoResults
		}
	}

	logger.Info("Question answered",
		zap.String("intent", string(resp.Intent)),
		zap.Int("attempts", resp.Attempts),
		zap.String("error_kind", string(resp.ErrorKind)),
		zap.Int("rows", len(resp.Rows)),
		zap.Duration("elapsed", time.Since(start)))

	return resp, nil
}

func (a *assistant) Summarize(ctx context.Context, resp *models.AskResponse) <-chan string {
	if resp.RequestID != "" {
		ctx = llm.WithRequestID(ctx, resp.RequestID)
	}
	return a.deps.Summarizer.Summarize(ctx, resp.Question, resp.Columns, resp.Rows)
}

// resolveEntity returns the entity to filter on. done is set when resp is
// already final: a choice is needed or the caller's hint was rejected.
func (a *assistant) resolveEntity(ctx context.Context, hint *models.ResolvedEntity, question string, resp *models.AskResponse, logger *zap.Logger) (*models.ResolvedEntity, bool) {
	if hint != nil && strings.TrimSpace(hint.Value) != "" {
		if check := sqlpkg.CheckValueForInjection("resolved_entity", hint.Value); check != nil {
			logger.Warn("Rejected resolved entity hint",
				zap.String("fingerprint", check.Fingerprint),
				zap.String("value", logging.TruncateString(hint.Value, 80)))
			resp.Intent = models.IntentSecurity
			blockResponse(resp)
			return nil, true
		}
		entity := &models.ResolvedEntity{Value: strings.TrimSpace(hint.Value), Column: hint.Column}
		if !entity.Column.IsValid() {
			entity.Column = ""
		}
		return entity, false
	}

	outcome := a.deps.Disambiguator.Disambiguate(ctx, question)
	a.recorder.ObserveDisambiguation(outcome.Status)

	switch outcome.Status {
	case models.DisambiguationChoices:
		resp.Choices = outcome.Choices
		resp.Message = apperrors.MsgNeedsSelection
		return nil, true
	case models.DisambiguationResolved:
		resp.Correction = &models.Correction{
			Original: outcome.OriginalTerm,
			Resolved: outcome.ResolvedValue,
			Column:   outcome.ResolvedColumn,
		}
		logger.Info("Entity corrected automatically",
			zap.String("original", outcome.OriginalTerm),
			zap.String("resolved", outcome.ResolvedValue),
			zap.String("column", string(outcome.ResolvedColumn)))
		return outcome.Entity(), false
	default:
		return nil, false
	}
}

type attemptState int

const (
	stateInit attemptState = iota
	stateRetrying
	stateTerminal
)

// generateAndExecute runs at most models.MaxGenerationAttempts rounds. Only an
// unknown-column or syntax failure on the first round moves to Retrying; the
// retry carries the engine error as feedback and is always terminal.
func (a *assistant) generateAndExecute(ctx context.Context, question string, resolved *models.ResolvedEntity, logger *zap.Logger) (*models.ExecutionResult, int, error) {
	var (
		result   *models.ExecutionResult
		err      error
		feedback string
		attempts int
	)

	for state := stateInit; state != stateTerminal && attempts < models.MaxGenerationAttempts; {
		attempts++
		a.recorder.ObserveGenerationAttempt(attempts)

		attempt, genErr := a.deps.Generator.Generate(ctx, question, resolved, feedback)
		if genErr != nil {
			if state == stateRetrying {
				// The retry produced nothing runnable; report the first failure.
				logger.Warn("Regeneration failed", zap.String("error", logging.SanitizeError(genErr)))
				return result, attempts, err
			}
			return &models.ExecutionResult{Kind: apperrors.KindGeneration}, attempts, genErr
		}
		attempt.AttemptNumber = attempts

		result, err = a.deps.Gate.Execute(ctx, attempt.QueryText)
		kind := apperrors.KindOf(err)
		if err == nil && result != nil {
			a.recorder.ObserveExecution(result.Kind)
		} else {
			a.recorder.ObserveExecution(kind)
		}

		if state == stateInit && kind.Retryable() {
			feedback = feedbackFor(err)
			logger.Info("Retrying generation with engine feedback",
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempts))
			state = stateRetrying
			continue
		}
		state = stateTerminal
	}

	return result, attempts, err
}

// feedbackFor extracts the raw engine message for the regeneration prompt.
func feedbackFor(err error) string {
	var execErr *apperrors.ExecutionError
	if errors.As(err, &execErr) && execErr.Cause != nil {
		return logging.FeedbackFromError(execErr.Cause)
	}
	return logging.FeedbackFromError(err)
}

func blockResponse(resp *models.AskResponse) {
	resp.ErrorKind = apperrors.KindSecurity
	resp.Message = apperrors.MsgSecurity
}
