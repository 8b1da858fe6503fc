package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/promptctl/promptctl/llm"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the llm.Client interface for OpenAI's chat
// completions API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAIClient.
// If baseURL is empty, the default OpenAI API endpoint is used.
func NewOpenAIClient(apiKey, baseURL, organization string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *OpenAIClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, *chatReq)
	if err != nil {
		return nil, convertOpenAIError(err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewUnavailableError("no choices in response", nil)
	}
	choice := chatResp.Choices[0]

	// OpenAI returns a flat message string; the normalizer's top-level text
	// path handles it.
	resp := &llm.Response{
		Raw: map[string]any{
			"text": choice.Message.Content,
		},
		Meta: map[string]any{
			"promptTokens":     chatResp.Usage.PromptTokens,
			"completionTokens": chatResp.Usage.CompletionTokens,
			"totalTokens":      chatResp.Usage.TotalTokens,
		},
		StopReason: string(choice.FinishReason),
	}
	if details := chatResp.Usage.CompletionTokensDetails; details != nil {
		resp.Meta["reasoningTokens"] = details.ReasoningTokens
	}
	return resp, nil
}

// Stream implements llm.Client.Stream.
func (c *OpenAIClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}
	chatReq.Stream = true
	// Usage arrives in a final chunk only when asked for.
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, *chatReq)
	if err != nil {
		return nil, convertOpenAIError(err)
	}
	return newOpenAIStream(stream), nil
}

func buildChatRequest(req *llm.Request) (*openai.ChatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := &openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	return chatReq, nil
}

// convertOpenAIError converts OpenAI API errors to classified llm.Error
// values. The SDK surfaces HTTP status codes, which beat string matching.
func convertOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return llm.NewUnavailableError("openai API error", err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		// insufficient_quota arrives as a 429 as well.
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return &llm.Error{
				Type:        llm.ErrorTypeQuotaExceeded,
				Message:     fmt.Sprintf("openai quota exceeded: %s", apiErr.Message),
				StatusCode:  apiErr.HTTPStatusCode,
				ProviderErr: err,
			}
		}
		return &llm.Error{
			Type:        llm.ErrorTypeRateLimited,
			Message:     fmt.Sprintf("openai rate limit: %s", apiErr.Message),
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidInput,
			Message:     fmt.Sprintf("openai invalid request: %s", apiErr.Message),
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeUnavailable,
			Message:     fmt.Sprintf("openai API error: %s", apiErr.Message),
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*OpenAIClient)(nil)
