// Package analyze merges extracted text and per-asset enrichment into a
// bounded prompt and converts the model's reply into a schema-shaped result
// or a structured error. The result object always has the promised shape;
// error conditions are data, not exceptions.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/providers"
	"github.com/niravbeni/inside-ideo/internal/resilience"
)

// TruncationMarker is appended whenever combined text is cut to the budget.
const TruncationMarker = "...[Content truncated due to length]"

// Error is a structured analysis failure.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Result is the analysis output. Either Error is nil and the parsed fields
// are meaningful, or Error is set and the named fields carry best-effort
// defaults so consumers always receive a well-shaped value. Never both.
type Result struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Insights  []string `json:"insights"`

	// Data is the full parsed object, including any schema-defined
	// extension fields beyond the three above.
	Data map[string]any `json:"data,omitempty"`

	// SchemaWarning notes advisory validation findings.
	SchemaWarning string `json:"schema_warning,omitempty"`

	Truncated bool   `json:"truncated,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

// Config controls prompt sizing and the model used.
type Config struct {
	Model         string
	CharsPerToken int // token estimate heuristic (default 4)
	TokenCeiling  int // estimated-token limit before truncation
	CharBudget    int // characters kept when truncating
	ExcerptLen    int // diagnostic excerpt length on parse failure
}

// DefaultConfig returns the analysis defaults.
func DefaultConfig() Config {
	return Config{
		CharsPerToken: 4,
		TokenCeiling:  7000,
		CharBudget:    28000,
		ExcerptLen:    500,
	}
}

// Analyzer issues the structured-analysis call.
type Analyzer struct {
	llm  providers.LLMClient
	exec *resilience.Executor
	cfg  Config
	log  *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(llm providers.LLMClient, exec *resilience.Executor, cfg Config, log *slog.Logger) *Analyzer {
	def := DefaultConfig()
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = def.CharsPerToken
	}
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = def.TokenCeiling
	}
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = def.CharBudget
	}
	if cfg.ExcerptLen <= 0 {
		cfg.ExcerptLen = def.ExcerptLen
	}
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{llm: llm, exec: exec, cfg: cfg, log: log}
}

// Analyze combines text and enrichment, applies the token budget, and
// issues one resilient call requesting a JSON object matching the schema.
func (a *Analyzer) Analyze(ctx context.Context, text string, assets []enrich.EnrichedAsset, prompt string, schema json.RawMessage) *Result {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if len(schema) == 0 {
		schema = DefaultSchema
	}

	combined, truncated := a.combine(text, assets)

	req := &providers.ChatRequest{
		Model:       a.cfg.Model,
		Temperature: 0,
		WantJSON:    true,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt(schema)},
			{Role: "user", Content: prompt + "\n\nDOCUMENT CONTENT:\n" + combined},
		},
	}

	result, cerr := resilience.Call(ctx, a.exec, "analyze", (*providers.ChatResult)(nil),
		func(ctx context.Context) (*providers.ChatResult, error) {
			return a.llm.Chat(ctx, req)
		})
	if cerr != nil {
		return errorResult(string(cerr.Kind), cerr.Message, "", truncated)
	}

	res := a.parseResponse(result.Content, schema)
	res.Truncated = truncated
	return res
}

// combine concatenates source text with the tagged per-asset block and
// truncates deterministically from the tail when the token estimate
// exceeds the ceiling.
func (a *Analyzer) combine(text string, assets []enrich.EnrichedAsset) (string, bool) {
	var sb strings.Builder
	sb.WriteString(text)

	if len(assets) > 0 {
		sb.WriteString("\n\n--- IMAGE CONTENT ---\n\n")
		for i, asset := range assets {
			fmt.Fprintf(&sb, "\nIMAGE %d:\n", i+1)
			if asset.OCRText != "" && asset.OCRText != providers.NoTextSentinel {
				fmt.Fprintf(&sb, "OCR Text: %s\n", asset.OCRText)
			}
			if asset.Description != "" {
				fmt.Fprintf(&sb, "Image Description: %s\n", asset.Description)
			}
		}
	}

	combined := sb.String()
	estTokens := len(combined) / a.cfg.CharsPerToken
	if estTokens <= a.cfg.TokenCeiling {
		return combined, false
	}

	a.log.Warn("content exceeds token ceiling, truncating",
		"estimated_tokens", estTokens, "ceiling", a.cfg.TokenCeiling)
	return combined[:a.cfg.CharBudget] + TruncationMarker, true
}

// systemPrompt names the schema's required fields as an explicit
// instruction, not merely a type hint.
func systemPrompt(schema json.RawMessage) string {
	var sb strings.Builder
	sb.WriteString("You are an expert document analyzer. Analyze the provided content and extract structured information.\n")
	sb.WriteString("You MUST return a single valid JSON object matching this schema:\n")
	sb.Write(schema)
	if required := requiredFields(schema); len(required) > 0 {
		fmt.Fprintf(&sb, "\nThe JSON object MUST contain the fields: %s.", strings.Join(required, ", "))
	}
	sb.WriteString("\nReturn only the JSON object, with no markdown fences or commentary.")
	return sb.String()
}

func requiredFields(schema json.RawMessage) []string {
	var doc struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil
	}
	return doc.Required
}

// parseResponse attempts a direct JSON parse, then the first-{ to last-}
// substring, then gives up with a diagnostic excerpt. Field values are
// never fabricated.
func (a *Analyzer) parseResponse(content string, schema json.RawMessage) *Result {
	data, err := parseObject(content)
	if err != nil {
		excerpt := content
		if len(excerpt) > a.cfg.ExcerptLen {
			excerpt = excerpt[:a.cfg.ExcerptLen]
		}
		a.log.Error("failed to parse analysis response as JSON", "excerpt", excerpt)
		return errorResult("parse_error", "the model returned an invalid format", excerpt, false)
	}

	res := &Result{Data: data}
	res.Summary, _ = data["summary"].(string)
	res.KeyPoints = stringSlice(data["key_points"])
	res.Insights = stringSlice(data["insights"])

	// Advisory validation: findings are recorded, the object is returned
	// as-is either way.
	if warn := validate(schema, data); warn != "" {
		res.SchemaWarning = warn
	}
	return res
}

func parseObject(content string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err == nil {
		return data, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func validate(schema json.RawMessage, data map[string]any) string {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return fmt.Sprintf("schema not loadable: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Sprintf("schema not compilable: %v", err)
	}
	if err := compiled.Validate(map[string]any(data)); err != nil {
		return fmt.Sprintf("response does not match schema: %v", err)
	}
	return ""
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// errorResult builds the degraded-but-well-shaped payload.
func errorResult(kind, message, excerpt string, truncated bool) *Result {
	return &Result{
		Summary:   "Sorry, there was an error processing this document with AI.",
		KeyPoints: []string{"AI processing failed", "Error: " + message},
		Insights:  []string{"Please try again or process manually"},
		Truncated: truncated,
		Error:     &Error{Kind: kind, Message: message, Excerpt: excerpt},
	}
}
