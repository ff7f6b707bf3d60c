package providers

import (
	"context"
	"testing"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"gpt-5", true},
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isReasoningModel(tt.model); got != tt.want {
			t.Errorf("isReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestChatWithoutCredentials(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{})

	if client.HasCredentials() {
		t.Fatal("client reports credentials without an API key")
	}

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("missing credentials should degrade, not error: %v", err)
	}
	if result.Success {
		t.Fatal("call succeeded without credentials")
	}
	if result.ErrorType != ErrTypeAuth {
		t.Errorf("error type = %q, want %q", result.ErrorType, ErrTypeAuth)
	}
	if result.ModelUsed != openAIDefaultModel {
		t.Errorf("model = %q, want default %q", result.ModelUsed, openAIDefaultModel)
	}
}

func TestMockClientFailAfter(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith = ErrTypeTransport
	mock.FailAfter = 1

	first, _ := mock.Chat(context.Background(), &ChatRequest{Model: "m"})
	second, _ := mock.Chat(context.Background(), &ChatRequest{Model: "m"})

	if !first.Success {
		t.Error("first call should succeed")
	}
	if second.Success {
		t.Error("second call should fail")
	}
	if mock.RequestCount() != 2 {
		t.Errorf("request count = %d, want 2", mock.RequestCount())
	}
}
