// Package enrich attaches OCR text and natural-language descriptions to
// accepted assets. Descriptions are requested in bounded batches, one
// vision call per batch, and the free-text reply is mapped back onto the
// input order through a deterministic fallback parse chain.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niravbeni/inside-ideo/internal/extract"
	"github.com/niravbeni/inside-ideo/internal/providers"
	"github.com/niravbeni/inside-ideo/internal/resilience"
)

// EnrichedAsset is an accepted asset plus recognition text and a
// description. Description is always non-empty after enrichment.
type EnrichedAsset struct {
	extract.AcceptedAsset
	OCRText     string `json:"ocr_text,omitempty"`
	Description string `json:"image_description"`
}

// BatchReport tells the caller how descriptions were obtained. Parse
// mismatches and call failures are reported here, never raised.
type BatchReport struct {
	Batches    int      `json:"batches"`
	Strategies []string `json:"strategies,omitempty"`
	Missing    int      `json:"missing"`
	CallErrors int      `json:"call_errors"`
}

// Config controls batching behavior.
type Config struct {
	BatchSize       int           // images per enrichment call
	HardMax         int           // batches above this are subdivided
	InterBatchDelay time.Duration // pause between batches (rate limits)
	Model           string
	MaxTokens       int
}

// DefaultConfig returns the batching defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       4,
		HardMax:         8,
		InterBatchDelay: time.Second,
		MaxTokens:       400,
	}
}

// Batcher groups assets and issues enrichment calls.
type Batcher struct {
	llm  providers.LLMClient
	exec *resilience.Executor
	cfg  Config
	log  *slog.Logger
}

// NewBatcher creates a Batcher.
func NewBatcher(llm providers.LLMClient, exec *resilience.Executor, cfg Config, log *slog.Logger) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.HardMax <= 0 {
		cfg.HardMax = DefaultConfig().HardMax
		if cfg.HardMax < cfg.BatchSize {
			cfg.HardMax = cfg.BatchSize
		}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{llm: llm, exec: exec, cfg: cfg, log: log}
}

// Describe returns exactly one description per asset, aligned to input
// order. Callers may zip input and output without re-validating. Failures
// degrade to placeholder descriptions recorded in the report.
func (b *Batcher) Describe(ctx context.Context, assets []extract.AcceptedAsset) ([]string, *BatchReport) {
	report := &BatchReport{}
	if len(assets) == 0 {
		return nil, report
	}

	out := make([]string, 0, len(assets))
	for start := 0; start < len(assets); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(assets) {
			end = len(assets)
		}

		if start > 0 && b.cfg.InterBatchDelay > 0 {
			if err := sleep(ctx, b.cfg.InterBatchDelay); err != nil {
				// Run is being cancelled; fill the rest and let the
				// caller see the shape it was promised.
				for i := start; i < len(assets); i++ {
					out = append(out, PlaceholderDescription)
					report.Missing++
				}
				return out, report
			}
		}

		out = append(out, b.describeBatch(ctx, assets[start:end], report)...)
	}
	return out, report
}

// describeBatch handles one batch, subdividing recursively when it exceeds
// the hard maximum item count.
func (b *Batcher) describeBatch(ctx context.Context, batch []extract.AcceptedAsset, report *BatchReport) []string {
	if len(batch) > b.cfg.HardMax {
		mid := len(batch) / 2
		first := b.describeBatch(ctx, batch[:mid], report)
		return append(first, b.describeBatch(ctx, batch[mid:], report)...)
	}

	report.Batches++

	images := make([][]byte, len(batch))
	for i, a := range batch {
		images[i] = a.Data
	}

	req := &providers.ChatRequest{
		Model:     b.cfg.Model,
		MaxTokens: b.cfg.MaxTokens * len(batch),
		Messages: []providers.Message{{
			Role:    "user",
			Content: batchPrompt(len(batch)),
			Images:  images,
		}},
	}

	result, cerr := resilience.Call(ctx, b.exec, "describe", (*providers.ChatResult)(nil),
		func(ctx context.Context) (*providers.ChatResult, error) {
			return b.llm.Chat(ctx, req)
		})
	if cerr != nil {
		b.log.Warn("description call failed, using placeholders",
			"batch_size", len(batch), "kind", string(cerr.Kind), "error", cerr.Message)
		report.CallErrors++
		out := make([]string, len(batch))
		for i := range out {
			out[i] = PlaceholderDescription
			report.Missing++
		}
		return out
	}

	descs, strategy, missing := parseDescriptions(result.Content, len(batch))
	report.Strategies = append(report.Strategies, strategy)
	report.Missing += missing
	if missing > 0 {
		b.log.Warn("description reply incomplete",
			"expected", len(batch), "missing", missing, "strategy", strategy)
	}

	for i := range descs {
		descs[i] = cleanDescription(descs[i])
	}
	return descs
}

// batchPrompt mandates the strict one-line-per-image numbered format.
func batchPrompt(n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are shown %d image(s) in order. ", n)
	sb.WriteString("For each image give a brief, concise description in 1-2 sentences, focusing on what it generally shows without excessive detail. ")
	fmt.Fprintf(&sb, "Reply with exactly %d line(s), one per image, in the order given, each formatted as \"N. description\" numbered from 1. ", n)
	sb.WriteString("Do not add headings, markdown, or any other text.")
	return sb.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
