// Package pdfio implements the extract.Renderer contract on top of MuPDF
// (go-fitz) for text and page rasterization, with pdfcpu for PDF validation
// and embedded image extraction.
package pdfio

import (
	"fmt"
	"io"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/niravbeni/inside-ideo/internal/extract"
)

// Renderer opens PDF documents for extraction.
type Renderer struct{}

// NewRenderer creates a PDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Open validates the PDF with pdfcpu and opens it with MuPDF.
func (r *Renderer) Open(path string) (extract.RenderedDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("invalid pdf %s: %w", path, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", path)
	}

	fz, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf with mupdf: %w", err)
	}

	return &document{path: path, fz: fz, pages: pageCount}, nil
}

type document struct {
	path  string
	fz    *fitz.Document
	pages int

	candidates map[int][]extract.ImageCandidate
	loaded     bool
}

func (d *document) PageCount() int { return d.pages }

func (d *document) PageText(index int) (string, error) {
	text, err := d.fz.Text(index - 1)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", index, err)
	}
	return text, nil
}

func (d *document) PageSize(index int) (float64, float64, error) {
	bound, err := d.fz.Bound(index - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d bounds: %w", index, err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

// RenderPage rasterizes the full page as PNG at scale times the base 72 DPI.
func (d *document) RenderPage(index int, scale float64) (extract.PageRender, error) {
	if scale <= 0 {
		scale = 2.0
	}
	data, err := d.fz.ImagePNG(index-1, 72*scale)
	if err != nil {
		return extract.PageRender{}, fmt.Errorf("render page %d: %w", index, err)
	}

	bound, err := d.fz.Bound(index - 1)
	if err != nil {
		return extract.PageRender{}, fmt.Errorf("page %d bounds: %w", index, err)
	}

	return extract.PageRender{
		Page:   index,
		Data:   data,
		Width:  int(float64(bound.Dx()) * scale),
		Height: int(float64(bound.Dy()) * scale),
	}, nil
}

// ImageCandidates lists the embedded images of a page. Extraction runs once
// for the whole document on first use; declared dimensions are left zero and
// probed downstream by the filter.
func (d *document) ImageCandidates(index int) ([]extract.ImageCandidate, error) {
	if !d.loaded {
		if err := d.loadCandidates(); err != nil {
			return nil, err
		}
	}
	return d.candidates[index], nil
}

func (d *document) loadCandidates() error {
	d.loaded = true
	d.candidates = make(map[int][]extract.ImageCandidate)

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open pdf for image extraction: %w", err)
	}
	defer f.Close()

	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		data, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("read embedded image %s: %w", img.Name, err)
		}
		d.candidates[img.PageNr] = append(d.candidates[img.PageNr], extract.ImageCandidate{
			Data: data,
			Page: img.PageNr,
		})
		return nil
	}

	if err := api.ExtractImages(f, nil, digest, nil); err != nil {
		return fmt.Errorf("extract embedded images: %w", err)
	}
	return nil
}

func (d *document) Close() error {
	return d.fz.Close()
}
