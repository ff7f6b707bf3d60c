// Package llmcall records every model call with its stage, latency, token
// usage, and cost, for per-document cost accounting.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldlens/fieldlens/internal/providers"
)

// Call is one recorded model invocation.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Stage is the pipeline stage that made the call: primary, vision,
	// or specialist.
	Stage      string `json:"stage"`
	DocumentID string `json:"document_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FromChatResult builds a Call from a provider result. Returns nil for a nil
// result.
func FromChatResult(stage, documentID string, result *providers.ChatResult) *Call {
	if result == nil {
		return nil
	}
	call := &Call{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		Stage:        stage,
		DocumentID:   documentID,
		RequestID:    result.RequestID,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		TotalTokens:  result.TotalTokens,
		CostUSD:      result.CostUSD,
		Success:      result.Success,
	}
	if !result.Success {
		call.ErrorType = result.ErrorType
		call.Error = result.ErrorMessage
	}
	return call
}
