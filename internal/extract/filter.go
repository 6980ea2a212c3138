package extract

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Limits holds the filter thresholds. All lower bounds are inclusive:
// an image of exactly the minimum dimension or area is accepted.
type Limits struct {
	MinWidth        int
	MinHeight       int
	MinArea         int
	MaxDimension    int
	MinPageFraction float64
	PerPageMax      int
	PerDocMax       int
}

// RejectReason says which check dropped a candidate.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectDuplicate
	RejectTooSmall
	RejectAreaTooSmall
	RejectTooLarge
	RejectPageFraction
	RejectPageQuota
	RejectRunQuota
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "accepted"
	case RejectDuplicate:
		return "duplicate"
	case RejectTooSmall:
		return "below minimum dimension"
	case RejectAreaTooSmall:
		return "below minimum area"
	case RejectTooLarge:
		return "above maximum dimension"
	case RejectPageFraction:
		return "below minimum page fraction"
	case RejectPageQuota:
		return "per-page quota reached"
	case RejectRunQuota:
		return "run quota reached"
	default:
		return "unknown"
	}
}

// Decision is the filter verdict for one candidate.
type Decision struct {
	Accepted bool
	Reason   RejectReason
	Width    int
	Height   int
	Hash     string
}

// Scope carries the mutable filter state for one processing run: the dedup
// hash set and the quota counters. It is owned by the orchestrator, passed
// into each filter call, and discarded at run end. Not safe for concurrent
// use; the pipeline filters sequentially within a scope.
type Scope struct {
	limits  Limits
	seen    map[string]struct{}
	perPage map[string]int
	total   int
}

// NewScope creates an empty scope with the given limits.
func NewScope(limits Limits) *Scope {
	s := &Scope{limits: limits}
	s.Reset()
	return s
}

// Reset clears dedup and quota state. Used when the dedup scope is
// configured per document instead of per run.
func (s *Scope) Reset() {
	s.seen = make(map[string]struct{})
	s.perPage = make(map[string]int)
	s.total = 0
}

// Accepted returns how many assets this scope has accepted so far.
func (s *Scope) Accepted() int { return s.total }

// Full reports whether the run quota is reached. The extractor uses this to
// skip candidate extraction entirely once no more assets can be accepted.
func (s *Scope) Full() bool {
	return s.limits.PerDocMax > 0 && s.total >= s.limits.PerDocMax
}

// Filter runs the ordered checks against one candidate. The first failing
// check determines the reject reason. On acceptance the content hash and
// quota counters are recorded immediately, so a later identical candidate
// in the same or a later page is rejected as a duplicate.
//
// An undecodable candidate is neither accepted nor rejected: the error is
// returned so the caller can report it and continue with the next candidate.
func (s *Scope) Filter(c ImageCandidate, pageArea float64) (Decision, error) {
	sum := md5.Sum(c.Data)
	hash := hex.EncodeToString(sum[:])

	if _, dup := s.seen[hash]; dup {
		return Decision{Reason: RejectDuplicate, Hash: hash}, nil
	}

	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		var err error
		w, h, err = probeDimensions(c.Data)
		if err != nil {
			return Decision{}, fmt.Errorf("decode dimensions for page %d candidate: %w", c.Page, err)
		}
	}
	d := Decision{Width: w, Height: h, Hash: hash}

	if w < s.limits.MinWidth || h < s.limits.MinHeight {
		d.Reason = RejectTooSmall
		return d, nil
	}
	if s.limits.MinArea > 0 && w*h < s.limits.MinArea {
		d.Reason = RejectAreaTooSmall
		return d, nil
	}
	if s.limits.MaxDimension > 0 && (w > s.limits.MaxDimension || h > s.limits.MaxDimension) {
		d.Reason = RejectTooLarge
		return d, nil
	}
	if s.limits.MinPageFraction > 0 && pageArea > 0 {
		if float64(w*h)/pageArea < s.limits.MinPageFraction {
			d.Reason = RejectPageFraction
			return d, nil
		}
	}

	pageKey := fmt.Sprintf("%s:%d", c.Doc, c.Page)
	if s.limits.PerPageMax > 0 && s.perPage[pageKey] >= s.limits.PerPageMax {
		d.Reason = RejectPageQuota
		return d, nil
	}
	if s.Full() {
		d.Reason = RejectRunQuota
		return d, nil
	}

	s.seen[hash] = struct{}{}
	s.perPage[pageKey]++
	s.total++
	d.Accepted = true
	return d, nil
}

// probeDimensions reads just the image header to get width and height.
func probeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
