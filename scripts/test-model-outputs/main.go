// test-model-outputs checks SQL generation across candidate models.
// It sends the same election questions to each model and verifies that a
// SELECT can be extracted and passes the execution gate. Nothing is executed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/config"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/schema"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

var sampleQuestions = []string{
	"Combien de sièges a obtenu le RHDP ?",
	"Quel est le taux de participation national ?",
	"Qui a gagné dans la région du Hambol ?",
	"Quels sont les 5 partis avec le plus de voix ?",
	"Combien de candidats indépendants ont été élus ?",
	"Quel candidat a obtenu le meilleur score à Abobo ?",
}

// Result is the outcome of one question for one model.
type Result struct {
	Question     string
	QueryText    string
	UsedFallback bool
	Error        string
	Duration     time.Duration
}

// Passed reports whether the model produced a gated SELECT.
func (r Result) Passed() bool {
	return r.Error == "" && r.QueryText != ""
}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to config.yaml")
	modelList := flag.String("models", "", "Comma-separated models to test (default: llm.sql_model)")
	dialect := flag.String("dialect", "DuckDB", "Engine name embedded in the instructions")
	timeout := flag.Duration("timeout", 120*time.Second, "Timeout for each model call")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFrom(*configPath, "dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("warn", "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	registry, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load schema registry: %v\n", err)
		os.Exit(1)
	}

	oracle, err := llm.NewFromConfig(cfg.LLM, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure oracle: %v\n", err)
		os.Exit(1)
	}

	models := parseModels(*modelList, cfg.LLM.SQLModel)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SQL Generation Test")
	fmt.Printf("Endpoint: %s (%s)\n", logging.SanitizeConnectionString(cfg.LLM.BaseURL), cfg.LLM.Provider)
	fmt.Println(strings.Repeat("=", 80))

	// Check never touches the engine, so the gate runs without one.
	gate := services.NewExecutionGate(registry, nil, logger)
	normalizer := services.NewNormalizer(registry)

	ctx := context.Background()
	allPassed := true
	for _, model := range models {
		fmt.Printf("\n%s\nTesting: %s\n%s\n", strings.Repeat("-", 80), model, strings.Repeat("-", 80))

		generator := services.NewQueryGenerator(registry, oracle, services.GeneratorConfig{
			Model:     model,
			MaxTokens: cfg.LLM.MaxTokens,
			Dialect:   *dialect,
		}, logger)

		passed := 0
		for _, question := range sampleQuestions {
			result := testQuestion(ctx, generator, gate, normalizer.Normalize(question), *timeout)
			result.Question = question
			printResult(result)
			if result.Passed() {
				passed++
			}
		}

		fmt.Printf("\n%s: %d/%d passed\n", model, passed, len(sampleQuestions))
		if passed < len(sampleQuestions) {
			allPassed = false
		}
	}

	if allPassed {
		fmt.Println("\nAll models passed!")
		os.Exit(0)
	}
	fmt.Println("\nSome models failed.")
	os.Exit(1)
}

func parseModels(list, fallback string) []string {
	var models []string
	for _, m := range strings.Split(list, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return []string{fallback}
	}
	return models
}

func testQuestion(ctx context.Context, generator services.QueryGenerator, gate services.ExecutionGate, question string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result Result
	start := time.Now()
	attempt, err := generator.Generate(ctx, question, nil, "")
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = describeError(err)
		return result
	}
	result.UsedFallback = attempt.UsedFallback

	gated, err := gate.Check(attempt.QueryText)
	if err != nil {
		result.QueryText = attempt.QueryText
		result.Error = describeError(err)
		return result
	}
	result.QueryText = gated
	return result
}

func describeError(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrSecurity):
		return "blocked by gate: " + logging.SanitizeError(err)
	case errors.Is(err, apperrors.ErrGeneration):
		return "no SELECT extracted: " + logging.SanitizeError(err)
	default:
		return logging.SanitizeError(err)
	}
}

func printResult(r Result) {
	status := "✓ PASS"
	if !r.Passed() {
		status = "✗ FAIL"
	}
	fmt.Printf("\n%s  %s  (%dms)\n", status, r.Question, r.Duration.Milliseconds())
	if r.QueryText != "" {
		fmt.Printf("  SQL: %s\n", logging.TruncateString(r.QueryText, 160))
	}
	if r.Error != "" {
		fmt.Printf("  Error: %s\n", r.Error)
	}
}
