package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptctl/promptctl/llm"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleClient implements the llm.Client interface against the Generative
// Language REST API. Google ships no Go SDK for it, so this binding speaks
// the wire format directly.
type GoogleClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
}

// NewGoogleClient creates a new GoogleClient with the given API key.
func NewGoogleClient(apiKey string, logger zerolog.Logger) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &GoogleClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
	}, nil
}

type generateRequest struct {
	Contents          []content  `json:"contents"`
	SystemInstruction *content   `json:"systemInstruction,omitempty"`
	GenerationConfig  *genConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type genConfig struct {
	MaxOutputTokens int64    `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type usageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int64 `json:"thoughtsTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synchronous implements llm.Client.Synchronous.
func (c *GoogleClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)
	body, err := c.do(ctx, url, buildRequest(req))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck // nothing to do about a close failure

	var genResp generateResponse
	if err := json.NewDecoder(body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return toResponse(&genResp), nil
}

// Stream implements llm.Client.Stream. The API streams server-sent events;
// the returned stream reads one SSE frame per Next call, so consumption pace
// bounds buffering.
func (c *GoogleClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, req.Model, c.apiKey)
	body, err := c.do(ctx, url, buildRequest(req))
	if err != nil {
		return nil, err
	}

	return newGoogleStream(body), nil
}

// do posts the request body and classifies non-200 statuses.
func (c *GoogleClient) do(ctx context.Context, url string, payload *generateRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, llm.NewUnavailableError("google request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck // error path
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, convertGoogleError(resp.StatusCode, raw)
	}
	return resp.Body, nil
}

func buildRequest(req *llm.Request) *generateRequest {
	out := &generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		out.GenerationConfig = &genConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}
	return out
}

// toResponse maps the wire response onto the normalizer's shapes: the
// candidate parts keep their native parts[0].text form and usage metadata is
// exposed under normalized key names, thoughtsTokenCount included.
func toResponse(genResp *generateResponse) *llm.Response {
	resp := &llm.Response{
		Raw:  map[string]any{},
		Meta: map[string]any{},
	}

	if len(genResp.Candidates) > 0 {
		cand := genResp.Candidates[0]
		parts := make([]any, 0, len(cand.Content.Parts))
		for _, p := range cand.Content.Parts {
			if p.Thought {
				continue
			}
			parts = append(parts, map[string]any{"text": p.Text})
		}
		resp.Raw["parts"] = parts
		resp.StopReason = strings.ToLower(cand.FinishReason)
	}

	if u := genResp.UsageMetadata; u != nil {
		resp.Meta["inputTokens"] = u.PromptTokenCount
		resp.Meta["outputTokens"] = u.CandidatesTokenCount
		resp.Meta["thinkingTokens"] = u.ThoughtsTokenCount
		resp.Meta["totalTokens"] = u.TotalTokenCount
	}
	return resp
}

// convertGoogleError maps an HTTP failure to a classified llm.Error. The
// API reports hard quota exhaustion as 429 RESOURCE_EXHAUSTED, so the status
// field disambiguates quota from transient rate limiting.
func convertGoogleError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		if parsed.Error.Status == "RESOURCE_EXHAUSTED" && strings.Contains(strings.ToLower(message), "quota") {
			return &llm.Error{
				Type:       llm.ErrorTypeQuotaExceeded,
				Message:    fmt.Sprintf("google quota exceeded: %s", message),
				StatusCode: statusCode,
			}
		}
		return &llm.Error{
			Type:       llm.ErrorTypeRateLimited,
			Message:    fmt.Sprintf("google rate limit: %s", message),
			StatusCode: statusCode,
		}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusNotFound:
		return &llm.Error{
			Type:       llm.ErrorTypeInvalidInput,
			Message:    fmt.Sprintf("google invalid request: %s", message),
			StatusCode: statusCode,
		}
	default:
		return &llm.Error{
			Type:       llm.ErrorTypeUnavailable,
			Message:    fmt.Sprintf("google API error %d: %s", statusCode, message),
			StatusCode: statusCode,
		}
	}
}

var _ llm.Client = (*GoogleClient)(nil)
