// Package providers holds the external model collaborators: the chat/vision
// LLM used for enrichment and analysis, and the OCR engine used for text
// recognition. The core consumes these through narrow interfaces; retry
// policy lives in the resilience package, not here.
package providers

import (
	"context"
	"time"
)

// NoTextSentinel is returned by OCR providers when an image is unreadable
// or carries no recognizable text. It never raises past the boundary.
const NoTextSentinel = "[No text detected in image]"

// LLMClient is the interface for chat/completion requests.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openai").
	Name() string
}

// OCRProvider handles image-to-text extraction.
type OCRProvider interface {
	// Name returns the provider identifier (e.g. "mistral-ocr").
	Name() string

	// Recognize extracts text from an image. Corrupted or textless input
	// yields NoTextSentinel, not an error.
	Recognize(ctx context.Context, image []byte) (*OCRResult, error)
}

// Message represents a chat message. Images are raw bytes, base64-encoded
// into the request by the client.
type Message struct {
	Role    string   `json:"role"` // "system", "user", "assistant"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages    []Message     `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"-"`

	// WantJSON hints that the reply should be a single JSON object.
	WantJSON bool `json:"-"`
}

// ChatResult is the response from an LLM call.
type ChatResult struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	ModelUsed        string `json:"model_used"`
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	Text          string        `json:"text"`
	ExecutionTime time.Duration `json:"execution_time"`
}
