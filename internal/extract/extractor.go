package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RenderedDoc is the view of one open document exposed by the rendering
// collaborator. Implementations live outside this package (see pdfio).
type RenderedDoc interface {
	// PageCount returns the number of pages.
	PageCount() int

	// PageText returns the extracted text of a page (may be empty).
	PageText(index int) (string, error)

	// PageSize returns the page dimensions in points.
	PageSize(index int) (w, h float64, err error)

	// RenderPage rasterizes the full page at the given upscale factor.
	RenderPage(index int, scale float64) (PageRender, error)

	// ImageCandidates lists the embedded images of a page. Declared
	// dimensions may be zero when the source does not carry them.
	ImageCandidates(index int) ([]ImageCandidate, error)

	Close() error
}

// Renderer opens documents for extraction.
type Renderer interface {
	Open(path string) (RenderedDoc, error)
}

// Result is the per-document extraction output.
type Result struct {
	Text    string
	Assets  []AcceptedAsset
	Renders []PageRender
	Errors  []ItemError
}

// Extractor walks a document page by page, filters embedded images through
// a run scope, and rasterizes every page.
type Extractor struct {
	renderer Renderer
	scale    float64
	log      *slog.Logger
}

// NewExtractor creates an Extractor. scale is the fixed page upscale factor
// for legibility (2.0 when zero).
func NewExtractor(renderer Renderer, scale float64, log *slog.Logger) *Extractor {
	if scale <= 0 {
		scale = 2.0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{renderer: renderer, scale: scale, log: log}
}

// ExtractDocument extracts text, accepted assets and page renders from one
// document, threading the shared run scope through the filter. Per-candidate
// and per-page failures are recorded in Result.Errors and never abort the
// document.
func (e *Extractor) ExtractDocument(ctx context.Context, doc Document, scope *Scope) (*Result, error) {
	rd, err := e.renderer.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Path, err)
	}
	defer rd.Close()

	res := &Result{}
	pages := rd.PageCount()

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := rd.PageText(i)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Doc: doc.Name, Page: i, Stage: "text", Err: err.Error()})
		}
		res.Text += fmt.Sprintf("\n--- Page %d ---\n%s", i, text)

		e.extractCandidates(rd, doc, i, scope, res)

		render, err := rd.RenderPage(i, e.scale)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Doc: doc.Name, Page: i, Stage: "render", Err: err.Error()})
			e.log.Warn("page render failed", "doc", doc.Name, "page", i, "error", err)
			continue
		}
		render.Doc = doc.Name
		render.Page = i
		res.Renders = append(res.Renders, render)
	}

	return res, nil
}

func (e *Extractor) extractCandidates(rd RenderedDoc, doc Document, page int, scope *Scope, res *Result) {
	// Once the run quota is hit there is nothing left to accept, so skip
	// candidate extraction entirely for cost control.
	if scope.Full() {
		return
	}

	candidates, err := rd.ImageCandidates(page)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Doc: doc.Name, Page: page, Stage: "candidates", Err: err.Error()})
		return
	}

	var pageArea float64
	if w, h, err := rd.PageSize(page); err == nil {
		pageArea = w * h
	}

	for _, c := range candidates {
		if scope.Full() {
			return
		}
		c.Doc = doc.Name
		c.Page = page

		decision, err := scope.Filter(c, pageArea)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Doc: doc.Name, Page: page, Stage: "filter", Err: err.Error()})
			continue
		}
		if !decision.Accepted {
			e.log.Debug("candidate rejected", "doc", doc.Name, "page", page, "reason", decision.Reason.String())
			continue
		}

		res.Assets = append(res.Assets, AcceptedAsset{
			ID:     uuid.New().String(),
			Data:   c.Data,
			Width:  decision.Width,
			Height: decision.Height,
			Doc:    doc.Name,
			Page:   page,
			Hash:   decision.Hash,
		})
		e.log.Info("accepted image", "doc", doc.Name, "page", page,
			"width", decision.Width, "height", decision.Height)
	}
}
