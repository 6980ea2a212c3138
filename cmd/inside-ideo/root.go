package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/niravbeni/inside-ideo/internal/analyze"
	"github.com/niravbeni/inside-ideo/internal/config"
	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/pdfio"
	"github.com/niravbeni/inside-ideo/internal/pipeline"
	"github.com/niravbeni/inside-ideo/internal/providers"
	"github.com/niravbeni/inside-ideo/internal/resilience"
	"github.com/niravbeni/inside-ideo/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "inside-ideo",
	Short: "PDF case-study extraction and AI analysis pipeline",
	Long: `inside-ideo extracts content from client case-study PDFs and turns it
into structured analysis using vision and language models.

The pipeline includes:
  - Text and embedded-image extraction with duplicate and size filtering
  - Full-page rasterization for visual browsing
  - Batched image descriptions and OCR
  - Structured JSON analysis of the combined content`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.inside-ideo/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "home directory (default: ~/.inside-ideo)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Load .env before any command reads API keys, matching local dev setups
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI's structured logger.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// buildPipeline wires providers, resilience and stages from configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) *pipeline.Pipeline {
	llm := providers.NewOpenAIClient(providers.OpenAIConfig{
		APIKey:    config.ResolveEnvVars(cfg.Providers.OpenAI.APIKey),
		Model:     cfg.Providers.OpenAI.Model,
		RateLimit: cfg.Providers.OpenAI.RateLimit,
		BaseURL:   cfg.Providers.OpenAI.BaseURL,
	})

	var ocr providers.OCRProvider
	if cfg.Providers.Mistral.Enabled {
		ocr = providers.NewMistralOCRClient(providers.MistralOCRConfig{
			APIKey:    config.ResolveEnvVars(cfg.Providers.Mistral.APIKey),
			Model:     cfg.Providers.Mistral.Model,
			RateLimit: cfg.Providers.Mistral.RateLimit,
		})
	}

	exec := resilience.NewExecutor(cfg.Retry.ExecutorConfig(), logger)
	batcher := enrich.NewBatcher(llm, exec, cfg.Enrich.BatcherConfig(cfg.Providers.OpenAI.Model), logger)
	enricher := enrich.NewEnricher(ocr, batcher, exec, logger)
	analyzer := analyze.NewAnalyzer(llm, exec, cfg.Analysis.AnalyzerConfig(cfg.Providers.OpenAI.Model), logger)

	return pipeline.New(pdfio.NewRenderer(), enricher, analyzer, cfg.PipelineConfig(), logger)
}

// loadConfig loads and validates configuration for commands that run the
// pipeline.
func loadConfig() (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := mgr.Get().Validate(); err != nil {
		return nil, err
	}
	return mgr, nil
}
