package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockClient(t *testing.T) {
	t.Run("scripted responses", func(t *testing.T) {
		c := NewMockClient()
		c.Responses = []string{"first", "second"}

		for i, want := range []string{"first", "second", "second"} {
			res, err := c.Chat(context.Background(), &ChatRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
			if err != nil {
				t.Fatalf("Chat() call %d error = %v", i, err)
			}
			if res.Content != want {
				t.Errorf("call %d Content = %q, want %q", i, res.Content, want)
			}
		}
		if c.RequestCount() != 3 {
			t.Errorf("RequestCount = %d, want 3", c.RequestCount())
		}
	})

	t.Run("scripted errors then success", func(t *testing.T) {
		c := NewMockClient()
		c.Errs = []error{errors.New("boom"), nil}
		c.ResponseText = "ok"

		if _, err := c.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Fatal("first call error = nil, want boom")
		}
		res, err := c.Chat(context.Background(), &ChatRequest{})
		if err != nil {
			t.Fatalf("second call error = %v", err)
		}
		if res.Content != "ok" {
			t.Errorf("Content = %q, want ok", res.Content)
		}
	})
}

func TestMockOCRSentinel(t *testing.T) {
	m := NewMockOCR("")
	res, err := m.Recognize(context.Background(), []byte("junk"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.Text != NoTextSentinel {
		t.Errorf("Text = %q, want sentinel", res.Text)
	}
}

func TestRateLimiterWait(t *testing.T) {
	r := NewRateLimiter(6000) // plenty of tokens, no blocking

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := r.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
}

func TestRateLimiterCancel(t *testing.T) {
	r := NewRateLimiter(1)
	r.tokens = 0 // force a wait

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
