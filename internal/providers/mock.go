package providers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string

	// Responses, when set, are returned in order; the last one repeats.
	Responses []string

	// Errs, when set, are returned before any response: call n returns
	// Errs[n] while n < len(Errs). A nil entry means success.
	Errs []error

	mu           sync.Mutex
	requests     []*ChatRequest
	requestCount atomic.Int64
}

// NewMockClient creates a mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat returns the scripted response or error.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	n := int(c.requestCount.Add(1)) - 1

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if n < len(c.Errs) && c.Errs[n] != nil {
		return nil, c.Errs[n]
	}

	content := c.ResponseText
	if len(c.Responses) > 0 {
		i := n
		if i >= len(c.Responses) {
			i = len(c.Responses) - 1
		}
		content = c.Responses[i]
	}

	return &ChatResult{
		Content:          content,
		PromptTokens:     10,
		CompletionTokens: 20,
		ModelUsed:        "mock-model",
	}, nil
}

// RequestCount returns the number of Chat calls made.
func (c *MockClient) RequestCount() int {
	return int(c.requestCount.Load())
}

// Requests returns the recorded requests.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

const MockOCRName = "mock-ocr"

// MockOCR is an OCRProvider for testing.
type MockOCR struct {
	Text         string
	Err          error
	requestCount atomic.Int64
}

// NewMockOCR creates a mock OCR provider.
func NewMockOCR(text string) *MockOCR {
	return &MockOCR{Text: text}
}

// Name returns the provider identifier.
func (m *MockOCR) Name() string {
	return MockOCRName
}

// Recognize returns the scripted text or error.
func (m *MockOCR) Recognize(ctx context.Context, image []byte) (*OCRResult, error) {
	m.requestCount.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	text := m.Text
	if text == "" {
		text = NoTextSentinel
	}
	return &OCRResult{Text: text}, nil
}

// RequestCount returns the number of Recognize calls made.
func (m *MockOCR) RequestCount() int {
	return int(m.requestCount.Load())
}
