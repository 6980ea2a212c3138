package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int, seed byte) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = seed + byte(i%7)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func defaultLimits() Limits {
	return Limits{
		MinWidth:        100,
		MinHeight:       100,
		MinArea:         10000,
		MaxDimension:    4000,
		MinPageFraction: 0,
		PerPageMax:      10,
		PerDocMax:       50,
	}
}

func candidate(w, h, page int, data []byte) ImageCandidate {
	return ImageCandidate{Data: data, Width: w, Height: h, Doc: "a.pdf", Page: page}
}

func TestFilterDedup(t *testing.T) {
	s := NewScope(defaultLimits())
	data := []byte("same bytes either way")

	d, err := s.Filter(candidate(200, 200, 1, data), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !d.Accepted {
		t.Fatalf("first candidate rejected: %s", d.Reason)
	}

	// Same bytes on a different page are still a duplicate.
	d, err = s.Filter(candidate(200, 200, 3, data), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if d.Accepted || d.Reason != RejectDuplicate {
		t.Errorf("got %+v, want duplicate rejection", d)
	}
	if s.Accepted() != 1 {
		t.Errorf("Accepted() = %d, want 1", s.Accepted())
	}
}

func TestFilterAllDuplicatePage(t *testing.T) {
	s := NewScope(defaultLimits())
	data := []byte("identical image bytes")

	accepted := 0
	for i := 0; i < 5; i++ {
		d, err := s.Filter(candidate(300, 300, 1, data), 0)
		if err != nil {
			t.Fatalf("Filter() error = %v", err)
		}
		if d.Accepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want exactly 1 for five identical images", accepted)
	}
}

func TestFilterSizeBoundaryInclusive(t *testing.T) {
	cases := []struct {
		name   string
		w, h   int
		accept bool
		reason RejectReason
	}{
		{"exactly minimum", 100, 100, true, RejectNone},
		{"one below min width", 99, 100, false, RejectTooSmall},
		{"one below min height", 100, 99, false, RejectTooSmall},
		{"exactly max dimension", 4000, 100, true, RejectNone},
		{"one above max dimension", 4001, 100, false, RejectTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScope(defaultLimits())
			d, err := s.Filter(candidate(tc.w, tc.h, 1, []byte(tc.name)), 0)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			if d.Accepted != tc.accept {
				t.Errorf("Accepted = %v, want %v (reason %s)", d.Accepted, tc.accept, d.Reason)
			}
			if !tc.accept && d.Reason != tc.reason {
				t.Errorf("Reason = %s, want %s", d.Reason, tc.reason)
			}
		})
	}
}

func TestFilterAreaBoundary(t *testing.T) {
	limits := defaultLimits()
	limits.MinWidth, limits.MinHeight = 1, 1
	limits.MinArea = 120 * 120

	s := NewScope(limits)
	d, err := s.Filter(candidate(120, 120, 1, []byte("exact area")), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !d.Accepted {
		t.Errorf("exact minimum area rejected: %s", d.Reason)
	}

	d, err = s.Filter(candidate(120, 119, 1, []byte("under area")), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if d.Accepted || d.Reason != RejectAreaTooSmall {
		t.Errorf("got %+v, want area rejection", d)
	}
}

func TestFilterPageFraction(t *testing.T) {
	limits := defaultLimits()
	limits.MinPageFraction = 0.05

	s := NewScope(limits)
	pageArea := 1000.0 * 1000.0

	// 200x200 = 4% of the page: a large icon, still dropped.
	d, err := s.Filter(candidate(200, 200, 1, []byte("icon")), pageArea)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if d.Accepted || d.Reason != RejectPageFraction {
		t.Errorf("got %+v, want page-fraction rejection", d)
	}

	d, err = s.Filter(candidate(300, 300, 1, []byte("figure")), pageArea)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !d.Accepted {
		t.Errorf("9%% figure rejected: %s", d.Reason)
	}
}

func TestFilterPerPageQuota(t *testing.T) {
	limits := defaultLimits()
	limits.PerPageMax = 2

	s := NewScope(limits)
	accepted := 0
	for i := 0; i < 5; i++ {
		d, err := s.Filter(candidate(200, 200, 1, []byte(fmt.Sprintf("img-%d", i))), 0)
		if err != nil {
			t.Fatalf("Filter() error = %v", err)
		}
		if d.Accepted {
			accepted++
		} else if d.Reason != RejectPageQuota {
			t.Errorf("candidate %d: reason = %s, want page quota", i, d.Reason)
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want first 2 in candidate order", accepted)
	}

	// A different page has its own quota.
	d, err := s.Filter(candidate(200, 200, 2, []byte("other page")), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !d.Accepted {
		t.Errorf("candidate on fresh page rejected: %s", d.Reason)
	}
}

func TestFilterRunQuota(t *testing.T) {
	limits := defaultLimits()
	limits.PerDocMax = 3

	s := NewScope(limits)
	for i := 0; i < 3; i++ {
		d, err := s.Filter(candidate(200, 200, i+1, []byte(fmt.Sprintf("r-%d", i))), 0)
		if err != nil || !d.Accepted {
			t.Fatalf("candidate %d: decision=%+v err=%v", i, d, err)
		}
	}
	if !s.Full() {
		t.Error("Full() = false after reaching run quota")
	}

	d, err := s.Filter(candidate(200, 200, 9, []byte("over quota")), 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if d.Accepted || d.Reason != RejectRunQuota {
		t.Errorf("got %+v, want run-quota rejection", d)
	}
}

func TestFilterProbesUndeclaredDimensions(t *testing.T) {
	s := NewScope(defaultLimits())

	d, err := s.Filter(ImageCandidate{Data: pngBytes(t, 150, 150, 1), Doc: "a.pdf", Page: 1}, 0)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !d.Accepted {
		t.Fatalf("decodable candidate rejected: %s", d.Reason)
	}
	if d.Width != 150 || d.Height != 150 {
		t.Errorf("probed dimensions = %dx%d, want 150x150", d.Width, d.Height)
	}
}

func TestFilterUndecodableIsError(t *testing.T) {
	s := NewScope(defaultLimits())

	_, err := s.Filter(ImageCandidate{Data: []byte("not an image"), Doc: "a.pdf", Page: 1}, 0)
	if err == nil {
		t.Fatal("Filter() error = nil, want decode error")
	}
	if s.Accepted() != 0 {
		t.Errorf("Accepted() = %d, want 0 after decode failure", s.Accepted())
	}

	// Processing continues: the next candidate is judged on its own.
	d, err := s.Filter(candidate(200, 200, 1, []byte("fine")), 0)
	if err != nil || !d.Accepted {
		t.Errorf("next candidate: decision=%+v err=%v, want acceptance", d, err)
	}
}

func TestScopeReset(t *testing.T) {
	s := NewScope(defaultLimits())
	data := []byte("shared bytes")

	if d, _ := s.Filter(candidate(200, 200, 1, data), 0); !d.Accepted {
		t.Fatalf("first accept failed: %s", d.Reason)
	}
	s.Reset()
	if d, _ := s.Filter(candidate(200, 200, 1, data), 0); !d.Accepted {
		t.Errorf("after Reset the same bytes should be accepted again, got %s", d.Reason)
	}
}
