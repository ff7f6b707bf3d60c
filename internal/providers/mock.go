package providers

import (
	"context"
	"fmt"
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
	FailWith     string // error type to fail with ("" = succeed)
	FailMessage  string
	FailAfter    int // fail after N requests (0 = apply FailWith immediately)

	// Captured state
	mu          sync.Mutex
	lastRequest *ChatRequest

	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: `{"field_mappings": {}}`,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string { return MockClientName }

// RequestCount returns the number of Chat calls observed.
func (c *MockClient) RequestCount() int { return int(c.requestCount.Load()) }

// LastRequest returns the most recently observed request.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRequest
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	count := c.requestCount.Add(1)
	c.mu.Lock()
	c.lastRequest = req
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return Failed(MockClientName, req.Model, req.RequestID,
				ErrTypeTransport, ctx.Err().Error(), 0), nil
		}
	}

	if c.FailWith != "" && int(count) > c.FailAfter {
		msg := c.FailMessage
		if msg == "" {
			msg = "mock failure"
		}
		return Failed(MockClientName, req.Model, req.RequestID, c.FailWith, msg, c.Latency), nil
	}

	return &ChatResult{
		Content:          c.ResponseText,
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		CostUSD:          150 * openAICostPerToken,
		ExecutionTime:    c.Latency,
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
		Success:          true,
	}, nil
}
