// Command appraise runs model evaluations described by a YAML run
// configuration and prints the aggregated results as JSON.
//
// All environment access happens here: provider API keys are resolved
// by the model runner registry, embedding keys select the similarity
// scorer, and EVAL_RESULTS_PATH overrides where results are written.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/rubriq/appraise/infrastructure/bertscore"
	"github.com/rubriq/appraise/infrastructure/metrics"
	"github.com/rubriq/appraise/infrastructure/modelrunner"
	"github.com/rubriq/appraise/internal/application"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/evals"
	"github.com/rubriq/appraise/internal/ports"
)

const (
	defaultResultsPath = "/tmp/eval_results/"

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "appraise",
		Short:         "Evaluate model outputs against labeled datasets",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newListCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered evaluation algorithms",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range evals.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	v := viper.New()
	v.SetDefault("results_path", defaultResultsPath)
	if err := v.BindEnv("results_path", "EVAL_RESULTS_PATH"); err != nil {
		panic(err)
	}

	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evaluation described by a YAML run config",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := application.LoadRunConfig(configPath)
			if err != nil {
				return err
			}
			return runEvaluation(cmd, config, v.GetString("results_path"))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML run config")
	cmd.Flags().String("results-dir", "", "directory to write results under (overrides EVAL_RESULTS_PATH)")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("results_path", cmd.Flags().Lookup("results-dir")); err != nil {
		panic(err)
	}

	return cmd
}

// runEvaluation wires the run config into an algorithm and evaluates
// every requested dataset. Each invocation writes under its own
// run-scoped directory so concurrent runs never collide.
func runEvaluation(cmd *cobra.Command, config *application.RunConfig, resultsPath string) error {
	ctx := cmd.Context()

	resultsDir := config.ResultsDir
	if resultsDir == "" {
		resultsDir = filepath.Join(resultsPath, uuid.NewString())
	}

	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)

	scorer := buildScorer()
	if scorer != nil {
		defer scorer.Close()
	}

	var model ports.ModelRunner
	if config.Model != nil {
		runner, err := buildModelRunner(config.Model, collector)
		if err != nil {
			return err
		}
		model = runner
	}

	algorithm, err := evals.New(config.Algorithm.Name, &config.Algorithm.Params, evals.Dependencies{
		Scorer:  scorer,
		Metrics: collector,
		Workers: config.Workers,
	})
	if err != nil {
		return err
	}

	request := evals.EvaluateRequest{
		Model:          model,
		PromptTemplate: config.PromptTemplate,
		Save:           config.Save,
		NumRecords:     config.NumRecords,
		ResultsDir:     resultsDir,
	}

	var outputs []domain.EvalOutput
	if len(config.Datasets) == 0 {
		outputs, err = algorithm.Evaluate(ctx, request)
		if err != nil {
			return err
		}
	} else {
		for i := range config.Datasets {
			request.DataConfig = &config.Datasets[i]
			results, err := algorithm.Evaluate(ctx, request)
			if err != nil {
				return err
			}
			outputs = append(outputs, results...)
		}
	}

	encoded, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding evaluation results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// buildModelRunner resolves the configured model through the provider
// registry, wrapping it in rate limiting, retries, metrics, and
// tracing. Middleware order matters: the rate limiter sits innermost
// so every retry attempt waits for a token.
func buildModelRunner(config *application.ModelRunConfig, collector ports.MetricsCollector) (ports.ModelRunner, error) {
	var middleware []modelrunner.Middleware
	if config.RequestsPerSecond > 0 {
		middleware = append(middleware,
			modelrunner.RateLimitMiddleware(rate.Limit(config.RequestsPerSecond), 1))
	}
	if config.MaxRetries > 0 {
		middleware = append(middleware,
			modelrunner.RetryMiddleware(config.MaxRetries, retryBaseDelay, retryMaxDelay))
	}
	middleware = append(middleware,
		modelrunner.MetricsMiddleware(collector),
		modelrunner.TracingMiddleware("appraise"),
	)

	registry, err := modelrunner.NewRegistry(modelrunner.RegistryConfig{
		Providers:          modelrunner.DefaultProviders,
		DefaultProvider:    "openai",
		DefaultTimeout:     time.Duration(config.TimeoutSeconds) * time.Second,
		DefaultTemperature: config.Temperature,
		DefaultMiddleware:  middleware,
	})
	if err != nil {
		return nil, err
	}
	return registry.GetRunner(config.Spec)
}

// buildScorer selects an embedding provider from the environment.
// Algorithms that need no similarity scorer ignore a nil result;
// GeneralSemanticRobustness rejects it at construction.
func buildScorer() ports.SimilarityScorer {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		pool, err := bertscore.NewOpenAIScorerPool(0, bertscore.OpenAIEmbedderConfig{APIKey: key})
		if err == nil {
			return pool
		}
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		pool, err := bertscore.NewGoogleScorerPool(0, bertscore.GoogleEmbedderConfig{APIKey: key})
		if err == nil {
			return pool
		}
	}
	return nil
}
