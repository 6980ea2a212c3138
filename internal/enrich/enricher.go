package enrich

import (
	"context"
	"log/slog"

	"github.com/niravbeni/inside-ideo/internal/extract"
	"github.com/niravbeni/inside-ideo/internal/providers"
	"github.com/niravbeni/inside-ideo/internal/resilience"
)

// Enricher runs OCR and description over accepted assets.
type Enricher struct {
	ocr     providers.OCRProvider
	batcher *Batcher
	exec    *resilience.Executor
	log     *slog.Logger
}

// NewEnricher creates an Enricher. ocr may be nil, in which case assets get
// descriptions only.
func NewEnricher(ocr providers.OCRProvider, batcher *Batcher, exec *resilience.Executor, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{ocr: ocr, batcher: batcher, exec: exec, log: log}
}

// Enrich returns one EnrichedAsset per input asset, in input order. OCR
// failures are isolated per asset; description failures degrade to
// placeholders. The output length always equals the input length.
func (e *Enricher) Enrich(ctx context.Context, assets []extract.AcceptedAsset) ([]EnrichedAsset, *BatchReport) {
	descs, report := e.batcher.Describe(ctx, assets)

	out := make([]EnrichedAsset, len(assets))
	for i, a := range assets {
		out[i] = EnrichedAsset{AcceptedAsset: a, Description: descs[i]}

		if e.ocr == nil {
			continue
		}
		res, cerr := resilience.Call(ctx, e.exec, "ocr", (*providers.OCRResult)(nil),
			func(ctx context.Context) (*providers.OCRResult, error) {
				return e.ocr.Recognize(ctx, a.Data)
			})
		if cerr != nil {
			e.log.Warn("ocr failed for asset", "page", a.Page, "kind", string(cerr.Kind), "error", cerr.Message)
			out[i].OCRText = providers.NoTextSentinel
			continue
		}
		out[i].OCRText = res.Text
	}
	return out, report
}
