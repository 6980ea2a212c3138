// Package extract decides which embedded images in a document are
// meaningful and assembles the per-document extraction result.
package extract

// Document identifies one source PDF within a processing run.
type Document struct {
	ID   string
	Path string
	Name string
}

// ImageCandidate is a raw embedded image pulled from a page, before
// filtering. Width/Height are zero when the source did not declare them;
// the filter probes the bytes in that case.
type ImageCandidate struct {
	Data   []byte
	Width  int
	Height int
	Doc    string
	Page   int // 1-based
}

// AcceptedAsset is a candidate that passed every filter check.
type AcceptedAsset struct {
	ID       string `json:"id"`
	Data     []byte `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Doc      string `json:"source_pdf,omitempty"`
	Page     int    `json:"page"`
	Position int    `json:"position"` // stable index for description alignment
	Hash     string `json:"-"`
}

// PageRender is a full-page rasterization. It is produced for every page
// regardless of filter outcomes and is never deduplicated or size-filtered.
type PageRender struct {
	Doc    string `json:"source_pdf,omitempty"`
	Page   int    `json:"page"`
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ItemError records an isolated per-candidate or per-page failure.
// These never abort the document.
type ItemError struct {
	Doc   string `json:"doc,omitempty"`
	Page  int    `json:"page"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}
