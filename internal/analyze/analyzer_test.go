package analyze

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/extract"
	"github.com/niravbeni/inside-ideo/internal/providers"
	"github.com/niravbeni/inside-ideo/internal/resilience"
)

func testExec(attempts int) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		JitterSeed:  7,
	}, nil)
}

const validReply = `{"summary": "A project.", "key_points": ["kp1", "kp2"], "insights": ["in1"]}`

func TestAnalyzeValidResponse(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = validReply

	a := NewAnalyzer(mock, testExec(3), Config{}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error != nil {
		t.Fatalf("Error = %+v, want nil", res.Error)
	}
	if res.Summary != "A project." {
		t.Errorf("Summary = %q", res.Summary)
	}
	if len(res.KeyPoints) != 2 || len(res.Insights) != 1 {
		t.Errorf("KeyPoints=%v Insights=%v", res.KeyPoints, res.Insights)
	}
	if res.SchemaWarning != "" {
		t.Errorf("SchemaWarning = %q, want none for a schema-valid reply", res.SchemaWarning)
	}
}

func TestAnalyzeRecoversEmbeddedJSON(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "Here is the analysis you asked for:\n" + validReply + "\nHope that helps!"

	a := NewAnalyzer(mock, testExec(3), Config{}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error != nil {
		t.Fatalf("Error = %+v, want recovery via brace substring", res.Error)
	}
	if res.Summary != "A project." {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestAnalyzeParseFailureCarriesExcerpt(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "I could not produce JSON today."

	a := NewAnalyzer(mock, testExec(3), Config{ExcerptLen: 10}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error == nil || res.Error.Kind != "parse_error" {
		t.Fatalf("Error = %+v, want parse_error", res.Error)
	}
	if res.Error.Excerpt != "I could no" {
		t.Errorf("Excerpt = %q, want leading 10 chars", res.Error.Excerpt)
	}
	// Degraded payload is still well-shaped.
	if res.Summary == "" || len(res.KeyPoints) == 0 || len(res.Insights) == 0 {
		t.Errorf("degraded payload incomplete: %+v", res)
	}
}

func TestAnalyzeMissingRequiredFieldsIsLenient(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"summary": "only a summary"}`

	a := NewAnalyzer(mock, testExec(3), Config{}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error != nil {
		t.Fatalf("Error = %+v, want lenient pass-through", res.Error)
	}
	if res.Summary != "only a summary" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.SchemaWarning == "" {
		t.Error("SchemaWarning empty, want advisory finding for missing required fields")
	}
}

func TestAnalyzeRateLimitedThenSucceeds(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Errs = []error{
		&resilience.HTTPError{StatusCode: 429, Body: "rate limited"},
		&resilience.HTTPError{StatusCode: 429, Body: "rate limited"},
		nil,
	}
	mock.ResponseText = validReply

	a := NewAnalyzer(mock, testExec(3), Config{}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error != nil {
		t.Fatalf("Error = %+v, want success on third attempt", res.Error)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3 (2 retries then success)", mock.RequestCount())
	}
}

func TestAnalyzeCallExhaustionIsStructuredError(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Errs = []error{
		&resilience.HTTPError{StatusCode: 503},
		&resilience.HTTPError{StatusCode: 503},
		&resilience.HTTPError{StatusCode: 503},
	}

	a := NewAnalyzer(mock, testExec(3), Config{}, nil)
	res := a.Analyze(context.Background(), "doc text", nil, "", nil)

	if res.Error == nil {
		t.Fatal("Error = nil, want structured error after exhaustion")
	}
	if res.Error.Kind != string(resilience.KindServer) {
		t.Errorf("Kind = %s, want %s", res.Error.Kind, resilience.KindServer)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want exactly max attempts", mock.RequestCount())
	}
}

func TestCombineTruncationDeterministic(t *testing.T) {
	mock := providers.NewMockClient()
	a := NewAnalyzer(mock, testExec(1), Config{TokenCeiling: 7000, CharBudget: 28000}, nil)

	text := strings.Repeat("x", 50000)

	first, truncated := a.combine(text, nil)
	if !truncated {
		t.Fatal("truncated = false, want true for 50k chars against 28k budget")
	}
	if len(first) != 28000+len(TruncationMarker) {
		t.Errorf("len = %d, want budget plus marker length", len(first))
	}
	if !strings.HasSuffix(first, TruncationMarker) {
		t.Error("marker not appended")
	}

	second, _ := a.combine(text, nil)
	if first != second {
		t.Error("re-running with identical input must yield byte-identical output")
	}
}

func TestCombineIncludesEnrichment(t *testing.T) {
	mock := providers.NewMockClient()
	a := NewAnalyzer(mock, testExec(1), Config{}, nil)

	assets := []enrich.EnrichedAsset{
		{
			AcceptedAsset: extract.AcceptedAsset{Page: 1},
			OCRText:       "chart labels",
			Description:   "A revenue chart",
		},
		{
			AcceptedAsset: extract.AcceptedAsset{Page: 2},
			OCRText:       providers.NoTextSentinel,
			Description:   "A team photo",
		},
	}

	combined, _ := a.combine("body", assets)
	if !strings.Contains(combined, "IMAGE 1:") || !strings.Contains(combined, "IMAGE 2:") {
		t.Errorf("asset tags missing: %q", combined)
	}
	if !strings.Contains(combined, "OCR Text: chart labels") {
		t.Error("OCR text missing")
	}
	if strings.Contains(combined, providers.NoTextSentinel) {
		t.Error("no-text sentinel leaked into prompt")
	}
	if !strings.Contains(combined, "Image Description: A team photo") {
		t.Error("description missing")
	}
}
