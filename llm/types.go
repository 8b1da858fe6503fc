package llm

import (
	"fmt"
	"strings"
)

// ProviderModel identifies one invocation target: a provider and one of its
// models. It is an immutable value; plan steps, fallbacks, and usage records
// all carry one.
type ProviderModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (pm ProviderModel) String() string {
	return pm.Provider + "/" + pm.Model
}

// ParseProviderModel parses a "provider:model" token as used in fallback
// specs. The provider name must be known to the catalog.
func ParseProviderModel(token string) (ProviderModel, error) {
	parts := strings.SplitN(strings.TrimSpace(token), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ProviderModel{}, fmt.Errorf("malformed provider:model token %q", token)
	}
	if _, err := GetProvider(parts[0]); err != nil {
		return ProviderModel{}, fmt.Errorf("unknown provider %q", parts[0])
	}
	return ProviderModel{Provider: parts[0], Model: parts[1]}, nil
}

// Request represents a single generation request, independent of provider.
type Request struct {
	Model       string
	Prompt      string
	System      string
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a completed generation. Providers return
// differently-shaped payloads; Raw preserves the provider's text-bearing
// shape (some use parts[0].text, some a top-level text field) and Meta
// preserves its usage metadata under the provider's own key names. The
// normalizer (ExtractText, ExtractUsage) converts both into uniform values.
type Response struct {
	Raw        map[string]any
	Meta       map[string]any
	StopReason string
}

// Text returns the buffered text form of the response.
func (r *Response) Text() string {
	if r == nil {
		return noTextGenerated
	}
	return ExtractText(r.Raw)
}

// Usage holds normalized token counts for one invocation. Thinking tokens
// are the reasoning-token category some providers report separately from
// input/output.
type Usage struct {
	InputTokens    int64 `json:"inputTokens"`
	OutputTokens   int64 `json:"outputTokens"`
	ThinkingTokens int64 `json:"thinkingTokens"`
	TotalTokens    int64 `json:"totalTokens"`
}

// UsageRecord is a Usage bound to its invocation target, with costs computed
// from catalog pricing. Read-only after creation; forwarded to the metrics
// recorder.
type UsageRecord struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Usage
	InputCost     float64 `json:"inputCost"`
	OutputCost    float64 `json:"outputCost"`
	TotalCost     float64 `json:"totalCost"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// StreamEventType represents the type of streaming event.
type StreamEventType string

const (
	StreamEventTypeStart StreamEventType = "start"
	StreamEventTypeText  StreamEventType = "text"
	StreamEventTypeUsage StreamEventType = "usage"
	StreamEventTypeStop  StreamEventType = "stop"
)

// StreamEvent represents a single event in a streaming response. Text events
// carry one plain text chunk; usage and stop events may carry the final
// token counts.
type StreamEvent struct {
	Type  StreamEventType
	Text  string
	Usage *Usage
	Done  bool
}
