// ask runs one question through the election assistant pipeline and prints
// the intent, any choices, the generated query, the rows and the summary.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/app"
	"github.com/ekaya-inc/election-assistant/pkg/config"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/models"
)

// Version is set at build time via ldflags
var Version = "dev"

type askOptions struct {
	configPath string
	resolved   string
	column     string
	noSummary  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a question about the 2025 legislative election results",
		Example: `  ask "Combien de sièges pour le RHDP ?"

  # Answer a previous disambiguation prompt
  ask "Qui a gagné à Divo ?" --resolved "DIVO, COMMUNE" --column circonscription`,
		Args:          cobra.ExactArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultConfigPath, "Path to config.yaml")
	cmd.Flags().StringVar(&opts.resolved, "resolved", "", "Value picked from a previous list of choices")
	cmd.Flags().StringVar(&opts.column, "column", "", "Column of the --resolved value (region, circonscription, candidat)")
	cmd.Flags().BoolVar(&opts.noSummary, "no-summary", false, "Skip the narrative summary")

	return cmd
}

func runAsk(cmd *cobra.Command, opts *askOptions, question string) error {
	req, err := buildRequest(question, opts)
	if err != nil {
		return err
	}

	// .env is optional; environment variables still apply without it.
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(opts.configPath, Version)
	if err != nil {
		return err
	}

	logger, err := logging.New("warn", "console")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	a, err := app.Build(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close engine", zap.Error(err))
		}
	}()

	resp, err := a.Assistant.Ask(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderResponse(out, resp)

	if !opts.noSummary && len(resp.Rows) > 0 {
		renderSummary(out, a.Assistant.Summarize(ctx, resp))
	}
	return nil
}

func buildRequest(question string, opts *askOptions) (models.AskRequest, error) {
	req := models.AskRequest{Question: question}
	if opts.resolved == "" {
		if opts.column != "" {
			return req, fmt.Errorf("--column requires --resolved")
		}
		return req, nil
	}

	column := models.EntityColumn(opts.column)
	if column != "" && !column.IsValid() {
		return req, fmt.Errorf("invalid --column %q (expected region, circonscription or candidat)", opts.column)
	}
	req.ResolvedEntity = &models.ResolvedEntity{Value: opts.resolved, Column: column}
	return req, nil
}
