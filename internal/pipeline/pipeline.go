// Package pipeline sequences extraction, enrichment and analysis across a
// batch of documents. Documents are processed sequentially; the dedup scope
// is run-wide or per-document depending on configuration and is discarded
// when the run ends.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/niravbeni/inside-ideo/internal/analyze"
	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/extract"
)

// DedupScope selects the lifetime of the duplicate-hash set.
type DedupScope string

const (
	// DedupRun shares one hash set across every document in the run.
	DedupRun DedupScope = "run"
	// DedupDocument resets the hash set between documents.
	DedupDocument DedupScope = "document"
)

// Config controls a pipeline run.
type Config struct {
	Limits extract.Limits
	Scale  float64
	Dedup  DedupScope
}

// Result is the final output of one run.
type Result struct {
	Text     string                 `json:"text"`
	Images   []enrich.EnrichedAsset `json:"images"`
	Pages    []extract.PageRender   `json:"pages"`
	Analysis *analyze.Result        `json:"structured_data,omitempty"`
	Errors   []extract.ItemError    `json:"errors,omitempty"`
	Report   *enrich.BatchReport    `json:"report,omitempty"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	extractor *extract.Extractor
	enricher  *enrich.Enricher
	analyzer  *analyze.Analyzer
	cfg       Config
	log       *slog.Logger
}

// New creates a Pipeline. analyzer may be nil to skip structured analysis.
func New(renderer extract.Renderer, enricher *enrich.Enricher, analyzer *analyze.Analyzer, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.Dedup == "" {
		cfg.Dedup = DedupRun
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		extractor: extract.NewExtractor(renderer, cfg.Scale, log),
		enricher:  enricher,
		analyzer:  analyzer,
		cfg:       cfg,
		log:       log,
	}
}

// Run processes the documents in order and returns the combined result.
// prompt and schema override the analysis defaults when non-empty. A failed
// document contributes an error marker to the combined text instead of
// aborting the run; context cancellation does abort.
func (p *Pipeline) Run(ctx context.Context, docs []extract.Document, prompt string, schema json.RawMessage) (*Result, error) {
	out := &Result{}
	scope := extract.NewScope(p.cfg.Limits)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.cfg.Dedup == DedupDocument {
			scope.Reset()
		}

		p.log.Info("processing document", "doc", doc.Name)
		res, err := p.extractor.ExtractDocument(ctx, doc, scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			p.log.Error("document extraction failed", "doc", doc.Name, "error", err)
			out.Text += fmt.Sprintf("\n\n=== PDF: %s ===\nError extracting content: %v", doc.Name, err)
			out.Errors = append(out.Errors, extract.ItemError{Doc: doc.Name, Stage: "extract", Err: err.Error()})
			continue
		}

		out.Text += fmt.Sprintf("\n\n=== PDF: %s ===\n%s", doc.Name, res.Text)
		out.Pages = append(out.Pages, res.Renders...)
		out.Errors = append(out.Errors, res.Errors...)

		for i := range res.Assets {
			res.Assets[i].Position = len(out.Images) + i
		}
		enriched, report := p.enricher.Enrich(ctx, res.Assets)
		out.Images = append(out.Images, enriched...)
		mergeReport(out, report)
	}

	if p.analyzer != nil {
		out.Analysis = p.analyzer.Analyze(ctx, out.Text, out.Images, prompt, schema)
	}

	p.log.Info("run complete",
		"documents", len(docs), "images", len(out.Images),
		"pages", len(out.Pages), "errors", len(out.Errors))
	return out, nil
}

func mergeReport(out *Result, r *enrich.BatchReport) {
	if r == nil {
		return
	}
	if out.Report == nil {
		out.Report = &enrich.BatchReport{}
	}
	out.Report.Batches += r.Batches
	out.Report.Strategies = append(out.Report.Strategies, r.Strategies...)
	out.Report.Missing += r.Missing
	out.Report.CallErrors += r.CallErrors
}
