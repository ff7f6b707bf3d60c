// Package providers wraps the model backends the extraction pipeline talks
// to. Each client exposes a uniform chat surface; callers never see
// provider-specific request or response shapes.
package providers

import (
	"context"
	"time"
)

// LLMClient is the interface all model transports implement.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openai").
	Name() string
}

// Error types reported on a failed ChatResult. The mapper layer branches on
// these to pick its degradation path.
const (
	ErrTypeAuth      = "auth"
	ErrTypeTransport = "transport"
	ErrTypeEmpty     = "empty_response"
)

// Message represents a chat message.
type Message struct {
	Role    string   `json:"role"` // "system", "user", "assistant"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"` // raw image bytes, base64-encoded per transport
}

// ResponseFormat requests structured output from the model.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatRequest is a transport-neutral request to a model.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses the client default if empty).
	Model string `json:"model,omitempty"`

	// Temperature is omitted from the wire request when nil or when the
	// target is a reasoning model that rejects sampling parameters.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the complete response from a model call.
type ChatResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Failed builds a ChatResult describing a failed call.
func Failed(provider, model, requestID, errType, msg string, elapsed time.Duration) *ChatResult {
	return &ChatResult{
		Provider:      provider,
		ModelUsed:     model,
		RequestID:     requestID,
		Success:       false,
		ErrorType:     errType,
		ErrorMessage:  msg,
		ExecutionTime: elapsed,
	}
}
