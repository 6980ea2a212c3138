package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeDoc implements RenderedDoc for tests.
type fakeDoc struct {
	pages      int
	text       map[int]string
	candidates map[int][]ImageCandidate
	renderErr  map[int]error
	closed     bool
}

func (f *fakeDoc) PageCount() int { return f.pages }

func (f *fakeDoc) PageText(index int) (string, error) {
	return f.text[index], nil
}

func (f *fakeDoc) PageSize(index int) (float64, float64, error) {
	return 612, 792, nil
}

func (f *fakeDoc) RenderPage(index int, scale float64) (PageRender, error) {
	if err := f.renderErr[index]; err != nil {
		return PageRender{}, err
	}
	return PageRender{Data: []byte(fmt.Sprintf("render-%d", index)), Width: 1224, Height: 1584}, nil
}

func (f *fakeDoc) ImageCandidates(index int) ([]ImageCandidate, error) {
	return f.candidates[index], nil
}

func (f *fakeDoc) Close() error {
	f.closed = true
	return nil
}

type fakeRenderer struct {
	docs map[string]*fakeDoc
}

func (f *fakeRenderer) Open(path string) (RenderedDoc, error) {
	d, ok := f.docs[path]
	if !ok {
		return nil, errors.New("no such document")
	}
	return d, nil
}

func TestExtractDocument(t *testing.T) {
	doc := &fakeDoc{
		pages: 2,
		text:  map[int]string{1: "first page", 2: "second page"},
		candidates: map[int][]ImageCandidate{
			1: {
				{Data: []byte("figure one"), Width: 400, Height: 400},
				{Data: []byte("figure one"), Width: 400, Height: 400}, // duplicate
				{Data: []byte("tiny icon"), Width: 16, Height: 16},
			},
			2: {
				{Data: []byte("figure two"), Width: 500, Height: 300},
			},
		},
	}
	r := &fakeRenderer{docs: map[string]*fakeDoc{"/tmp/a.pdf": doc}}

	e := NewExtractor(r, 2.0, nil)
	scope := NewScope(defaultLimits())
	res, err := e.ExtractDocument(context.Background(), Document{ID: "d1", Path: "/tmp/a.pdf", Name: "a.pdf"}, scope)
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}

	if len(res.Assets) != 2 {
		t.Fatalf("assets = %d, want 2 (dup and icon filtered)", len(res.Assets))
	}
	if res.Assets[0].Page != 1 || res.Assets[1].Page != 2 {
		t.Errorf("asset pages = %d,%d, want 1,2", res.Assets[0].Page, res.Assets[1].Page)
	}
	if res.Assets[0].ID == "" || res.Assets[0].Hash == "" {
		t.Error("accepted asset missing ID or hash")
	}

	if len(res.Renders) != 2 {
		t.Errorf("renders = %d, want one per page", len(res.Renders))
	}
	if !strings.Contains(res.Text, "--- Page 1 ---") || !strings.Contains(res.Text, "second page") {
		t.Errorf("combined text missing page markers: %q", res.Text)
	}
	if !doc.closed {
		t.Error("document not closed")
	}
}

func TestExtractDocumentRenderFailureIsolated(t *testing.T) {
	doc := &fakeDoc{
		pages:     3,
		text:      map[int]string{1: "a", 2: "b", 3: "c"},
		renderErr: map[int]error{2: errors.New("rasterizer crashed")},
	}
	r := &fakeRenderer{docs: map[string]*fakeDoc{"/tmp/a.pdf": doc}}

	e := NewExtractor(r, 2.0, nil)
	res, err := e.ExtractDocument(context.Background(), Document{Path: "/tmp/a.pdf", Name: "a.pdf"}, NewScope(defaultLimits()))
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}

	if len(res.Renders) != 2 {
		t.Errorf("renders = %d, want 2 (page 2 failed, others unaffected)", len(res.Renders))
	}
	if len(res.Errors) != 1 || res.Errors[0].Page != 2 || res.Errors[0].Stage != "render" {
		t.Errorf("errors = %+v, want single render error for page 2", res.Errors)
	}
}

func TestExtractDocumentSkipsCandidatesWhenFull(t *testing.T) {
	doc := &fakeDoc{
		pages: 2,
		candidates: map[int][]ImageCandidate{
			1: {{Data: []byte("one"), Width: 400, Height: 400}},
			2: {{Data: []byte("two"), Width: 400, Height: 400}},
		},
	}
	r := &fakeRenderer{docs: map[string]*fakeDoc{"/tmp/a.pdf": doc}}

	limits := defaultLimits()
	limits.PerDocMax = 1
	scope := NewScope(limits)

	e := NewExtractor(r, 2.0, nil)
	res, err := e.ExtractDocument(context.Background(), Document{Path: "/tmp/a.pdf", Name: "a.pdf"}, scope)
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}
	if len(res.Assets) != 1 {
		t.Errorf("assets = %d, want 1 (run quota)", len(res.Assets))
	}
	// Page renders are independent of filtering and still produced.
	if len(res.Renders) != 2 {
		t.Errorf("renders = %d, want 2", len(res.Renders))
	}
}

func TestExtractDocumentCancellation(t *testing.T) {
	doc := &fakeDoc{pages: 5}
	r := &fakeRenderer{docs: map[string]*fakeDoc{"/tmp/a.pdf": doc}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExtractor(r, 2.0, nil)
	_, err := e.ExtractDocument(ctx, Document{Path: "/tmp/a.pdf", Name: "a.pdf"}, NewScope(defaultLimits()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
