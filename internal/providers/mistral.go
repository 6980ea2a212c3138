package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/niravbeni/inside-ideo/internal/resilience"
)

const (
	MistralOCRName    = "mistral-ocr"
	MistralOCRBaseURL = "https://api.mistral.ai/v1"
	MistralOCRModel   = "mistral-ocr-latest"
)

// MistralOCRConfig holds configuration for the Mistral OCR client.
type MistralOCRConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RateLimit  float64      // Requests per second (default: 6.0)
	HTTPClient *http.Client // Optional (tests)
}

// MistralOCRClient implements OCRProvider using the Mistral OCR API.
type MistralOCRClient struct {
	apiKey  string
	baseURL string
	model   string
	limiter *RateLimiter
	client  *http.Client
}

// NewMistralOCRClient creates a new Mistral OCR client.
func NewMistralOCRClient(cfg MistralOCRConfig) *MistralOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralOCRBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralOCRModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 6.0
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &MistralOCRClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		limiter: NewRateLimiter(int(cfg.RateLimit * 60)),
		client:  client,
	}
}

// Name returns the provider identifier.
func (c *MistralOCRClient) Name() string {
	return MistralOCRName
}

type mistralOCRRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type mistralOCRResponse struct {
	Model string `json:"model"`
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// Recognize extracts text from an image. An unreadable image yields the
// NoTextSentinel rather than an error; only transport and API failures
// surface as errors for the resilience wrapper to classify.
func (c *MistralOCRClient) Recognize(ctx context.Context, image []byte) (*OCRResult, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := mistralOCRRequest{
		Model: c.model,
		Document: mistralDocument{
			Type:     "image_url",
			ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ocr response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// 422 means the provider could not decode the image: per contract
		// that is "unreadable", not a failure.
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return &OCRResult{Text: NoTextSentinel, ExecutionTime: time.Since(start)}, nil
		}
		return nil, &resilience.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("unmarshal ocr response: %w", err)
	}

	var parts []string
	for _, page := range ocrResp.Pages {
		if text := strings.TrimSpace(page.Markdown); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		text = NoTextSentinel
	}

	return &OCRResult{Text: text, ExecutionTime: time.Since(start)}, nil
}
