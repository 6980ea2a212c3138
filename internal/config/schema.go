package config

import (
	"time"

	"github.com/niravbeni/inside-ideo/internal/analyze"
	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/extract"
	"github.com/niravbeni/inside-ideo/internal/pipeline"
	"github.com/niravbeni/inside-ideo/internal/resilience"
)

// Config holds inside-ideo configuration.
// Stored at: config.yaml in cwd or ~/.inside-ideo.
type Config struct {
	Providers ProvidersCfg `mapstructure:"providers" yaml:"providers"`
	Filter    FilterCfg    `mapstructure:"filter" yaml:"filter"`
	Enrich    EnrichCfg    `mapstructure:"enrich" yaml:"enrich"`
	Retry     RetryCfg     `mapstructure:"retry" yaml:"retry"`
	Analysis  AnalysisCfg  `mapstructure:"analysis" yaml:"analysis"`
	Pipeline  PipelineCfg  `mapstructure:"pipeline" yaml:"pipeline"`
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
}

// ProvidersCfg configures the external AI providers.
type ProvidersCfg struct {
	OpenAI  OpenAICfg  `mapstructure:"openai" yaml:"openai"`
	Mistral MistralCfg `mapstructure:"mistral" yaml:"mistral"`
}

// OpenAICfg configures the OpenAI client used for descriptions and analysis.
type OpenAICfg struct {
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model     string  `mapstructure:"model" yaml:"model"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`
}

// MistralCfg configures the Mistral OCR client.
type MistralCfg struct {
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model     string  `mapstructure:"model" yaml:"model"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// FilterCfg holds the asset filter thresholds.
type FilterCfg struct {
	MinWidth        int     `mapstructure:"min_width" yaml:"min_width"`
	MinHeight       int     `mapstructure:"min_height" yaml:"min_height"`
	MinArea         int     `mapstructure:"min_area" yaml:"min_area"`
	MaxDimension    int     `mapstructure:"max_dimension" yaml:"max_dimension"`
	MinPageFraction float64 `mapstructure:"min_page_fraction" yaml:"min_page_fraction"`
	PerPageMax      int     `mapstructure:"per_page_max" yaml:"per_page_max"`
	PerDocMax       int     `mapstructure:"per_doc_max" yaml:"per_doc_max"`
}

// Limits converts to the filter's limit set.
func (f FilterCfg) Limits() extract.Limits {
	return extract.Limits{
		MinWidth:        f.MinWidth,
		MinHeight:       f.MinHeight,
		MinArea:         f.MinArea,
		MaxDimension:    f.MaxDimension,
		MinPageFraction: f.MinPageFraction,
		PerPageMax:      f.PerPageMax,
		PerDocMax:       f.PerDocMax,
	}
}

// EnrichCfg configures description batching.
type EnrichCfg struct {
	BatchSize         int     `mapstructure:"batch_size" yaml:"batch_size"`
	HardMax           int     `mapstructure:"hard_max" yaml:"hard_max"`
	InterBatchDelayMS int     `mapstructure:"inter_batch_delay_ms" yaml:"inter_batch_delay_ms"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	OCRRateLimit      float64 `mapstructure:"ocr_rate_limit" yaml:"ocr_rate_limit"`
}

// BatcherConfig converts to the batcher's config.
func (e EnrichCfg) BatcherConfig(model string) enrich.Config {
	return enrich.Config{
		BatchSize:       e.BatchSize,
		HardMax:         e.HardMax,
		InterBatchDelay: time.Duration(e.InterBatchDelayMS) * time.Millisecond,
		Model:           model,
		MaxTokens:       e.MaxTokens,
	}
}

// RetryCfg configures the resilient call wrapper.
type RetryCfg struct {
	MaxAttempts    int   `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS    int   `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS     int   `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	JitterSeed     int64 `mapstructure:"jitter_seed" yaml:"jitter_seed"`
	BreakerEnabled bool  `mapstructure:"breaker_enabled" yaml:"breaker_enabled"`
}

// ExecutorConfig converts to the executor's config.
func (r RetryCfg) ExecutorConfig() resilience.Config {
	return resilience.Config{
		MaxAttempts:    r.MaxAttempts,
		BaseDelay:      time.Duration(r.BaseDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(r.MaxDelayMS) * time.Millisecond,
		JitterSeed:     r.JitterSeed,
		BreakerEnabled: r.BreakerEnabled,
	}
}

// AnalysisCfg configures the structured analysis call.
type AnalysisCfg struct {
	TokenCeiling int `mapstructure:"token_ceiling" yaml:"token_ceiling"`
	CharBudget   int `mapstructure:"char_budget" yaml:"char_budget"`
}

// AnalyzerConfig converts to the analyzer's config.
func (a AnalysisCfg) AnalyzerConfig(model string) analyze.Config {
	return analyze.Config{
		Model:        model,
		TokenCeiling: a.TokenCeiling,
		CharBudget:   a.CharBudget,
	}
}

// PipelineCfg configures run-level behavior.
type PipelineCfg struct {
	DedupScope string  `mapstructure:"dedup_scope" yaml:"dedup_scope"` // "run" or "document"
	PageScale  float64 `mapstructure:"page_scale" yaml:"page_scale"`
}

// PipelineConfig converts to the orchestrator's config.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Limits: c.Filter.Limits(),
		Scale:  c.Pipeline.PageScale,
		Dedup:  pipeline.DedupScope(c.Pipeline.DedupScope),
	}
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersCfg{
			OpenAI: OpenAICfg{
				APIKey:    "${OPENAI_API_KEY}",
				Model:     "gpt-4o-mini",
				RateLimit: 8.0,
			},
			Mistral: MistralCfg{
				APIKey:    "${MISTRAL_API_KEY}",
				Model:     "mistral-ocr-latest",
				RateLimit: 6.0,
				Enabled:   true,
			},
		},
		Filter: FilterCfg{
			MinWidth:        500,
			MinHeight:       500,
			MinArea:         0,
			MaxDimension:    10000,
			MinPageFraction: 0.05,
			PerPageMax:      5,
			PerDocMax:       20,
		},
		Enrich: EnrichCfg{
			BatchSize:         4,
			HardMax:           8,
			InterBatchDelayMS: 1000,
			MaxTokens:         400,
		},
		Retry: RetryCfg{
			MaxAttempts: 3,
			BaseDelayMS: 1000,
			MaxDelayMS:  30000,
		},
		Analysis: AnalysisCfg{
			TokenCeiling: 7000,
			CharBudget:   28000,
		},
		Pipeline: PipelineCfg{
			DedupScope: "run",
			PageScale:  2.0,
		},
		Server: ServerCfg{
			Addr: ":8000",
		},
	}
}
