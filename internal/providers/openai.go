package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"

	// Rough blended price used when the transport does not report cost.
	// USD per token, ~$0.02 per 1K tokens.
	openAICostPerToken = 0.00002
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	BaseURL    string       // optional (tests)
	HTTPClient *http.Client // optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK.
type OpenAIClient struct {
	model   string
	hasKey  bool
	client  openai.Client
	limiter *rate.Limiter
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The pipeline degrades per stage instead of retrying model calls.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:   cfg.Model,
		hasKey:  strings.TrimSpace(cfg.APIKey) != "",
		client:  openai.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// HasCredentials reports whether an API key was supplied.
func (c *OpenAIClient) HasCredentials() bool { return c.hasKey }

// isReasoningModel reports whether the model rejects sampling parameters and
// expects max_completion_tokens semantics.
func isReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5")
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	if !c.hasKey {
		return Failed(OpenAIName, model, requestID, ErrTypeAuth,
			"no API key configured", time.Since(start)), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Failed(OpenAIName, model, requestID, ErrTypeTransport,
			err.Error(), time.Since(start)), nil
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: buildMessages(req.Messages),
	}
	if req.Temperature != nil && !isReasoningModel(model) {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	completion, err := c.client.Chat.Completions.New(callCtx, params)
	elapsed := time.Since(start)
	if err != nil {
		return Failed(OpenAIName, model, requestID, classifyOpenAIError(err),
			err.Error(), elapsed), nil
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return Failed(OpenAIName, model, requestID, ErrTypeEmpty,
			"model returned no content", elapsed), nil
	}

	result := &ChatResult{
		Content:          completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		ExecutionTime:    elapsed,
		Provider:         OpenAIName,
		ModelUsed:        model,
		RequestID:        requestID,
		Success:          true,
	}
	result.CostUSD = float64(result.TotalTokens) * openAICostPerToken
	return result, nil
}

func buildMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(m.Content),
			}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
					}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

func classifyOpenAIError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return ErrTypeAuth
		}
	}
	return ErrTypeTransport
}

// String renders a short identifier for logs.
func (c *OpenAIClient) String() string {
	return fmt.Sprintf("%s(%s)", OpenAIName, c.model)
}
