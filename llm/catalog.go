package llm

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrNotFound is returned by catalog lookups for unknown providers or models.
var ErrNotFound = errors.New("not found")

// Model capability tags. Matching is case-sensitive and exact.
const (
	CapabilityText       = "text"
	CapabilityStreaming  = "streaming"
	CapabilityStructured = "structured"
	CapabilityReasoning  = "reasoning"
	CapabilityVision     = "vision"
)

// Provider describes one of the supported LLM backends.
type Provider struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DefaultModel string          `json:"default_model"`
	Models       []ModelMetadata `json:"models"`
}

// ModelMetadata describes a model's capabilities and pricing. Costs are USD
// per one million tokens.
type ModelMetadata struct {
	ID               string   `json:"id"`
	Provider         string   `json:"provider"`
	Name             string   `json:"name"`
	ContextWindow    int64    `json:"context_window"`
	DefaultMaxTokens int64    `json:"default_max_tokens"`
	CostPer1MIn      float64  `json:"cost_per_1m_in"`
	CostPer1MOut     float64  `json:"cost_per_1m_out"`
	Capabilities     []string `json:"capabilities"`
}

// catalog is the static provider/model table. Declaration order matters: it
// drives the default fallback ordering.
var catalog = []Provider{
	{
		ID:           ProviderGoogle,
		Name:         "Google",
		DefaultModel: "gemini-2.5-flash",
		Models: []ModelMetadata{
			{
				ID: "gemini-2.5-flash", Provider: ProviderGoogle, Name: "Gemini 2.5 Flash",
				ContextWindow: 1048576, DefaultMaxTokens: 8192,
				CostPer1MIn: 0.30, CostPer1MOut: 2.50,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityReasoning, CapabilityVision},
			},
			{
				ID: "gemini-2.5-pro", Provider: ProviderGoogle, Name: "Gemini 2.5 Pro",
				ContextWindow: 1048576, DefaultMaxTokens: 8192,
				CostPer1MIn: 1.25, CostPer1MOut: 10.00,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityReasoning, CapabilityVision},
			},
			{
				ID: "gemini-2.0-flash", Provider: ProviderGoogle, Name: "Gemini 2.0 Flash",
				ContextWindow: 1048576, DefaultMaxTokens: 8192,
				CostPer1MIn: 0.10, CostPer1MOut: 0.40,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityVision},
			},
		},
	},
	{
		ID:           ProviderOpenAI,
		Name:         "OpenAI",
		DefaultModel: "gpt-4o-mini",
		Models: []ModelMetadata{
			{
				ID: "gpt-4o-mini", Provider: ProviderOpenAI, Name: "GPT-4o mini",
				ContextWindow: 128000, DefaultMaxTokens: 16384,
				CostPer1MIn: 0.15, CostPer1MOut: 0.60,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityVision},
			},
			{
				ID: "gpt-4o", Provider: ProviderOpenAI, Name: "GPT-4o",
				ContextWindow: 128000, DefaultMaxTokens: 16384,
				CostPer1MIn: 2.50, CostPer1MOut: 10.00,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityVision},
			},
			{
				ID: "o4-mini", Provider: ProviderOpenAI, Name: "o4-mini",
				ContextWindow: 200000, DefaultMaxTokens: 100000,
				CostPer1MIn: 1.10, CostPer1MOut: 4.40,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityReasoning},
			},
		},
	},
	{
		ID:           ProviderAnthropic,
		Name:         "Anthropic",
		DefaultModel: "claude-haiku-4-5",
		Models: []ModelMetadata{
			{
				ID: "claude-haiku-4-5", Provider: ProviderAnthropic, Name: "Claude Haiku 4.5",
				ContextWindow: 200000, DefaultMaxTokens: 8192,
				CostPer1MIn: 1.00, CostPer1MOut: 5.00,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityVision},
			},
			{
				ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, Name: "Claude Sonnet 4.5",
				ContextWindow: 200000, DefaultMaxTokens: 16384,
				CostPer1MIn: 3.00, CostPer1MOut: 15.00,
				Capabilities: []string{CapabilityText, CapabilityStreaming, CapabilityStructured, CapabilityReasoning, CapabilityVision},
			},
		},
	},
}

// defaultFallbacks is the hardcoded fallback pair list used when no override
// is configured. Pairs whose provider equals the primary's are filtered out
// at plan build time.
var defaultFallbacks = []ProviderModel{
	{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
	{Provider: ProviderAnthropic, Model: "claude-haiku-4-5"},
}

// GetProvider looks up a provider by id.
func GetProvider(id string) (*Provider, error) {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i], nil
		}
	}
	return nil, fmt.Errorf("provider %q: %w", id, ErrNotFound)
}

// GetModel looks up a model by name across all providers.
func GetModel(name string) (*ModelMetadata, error) {
	for i := range catalog {
		for j := range catalog[i].Models {
			if catalog[i].Models[j].ID == name {
				return &catalog[i].Models[j], nil
			}
		}
	}
	return nil, fmt.Errorf("model %q: %w", name, ErrNotFound)
}

// ModelsForProvider returns the catalog entries for one provider. Unknown
// provider ids fail with ErrNotFound.
func ModelsForProvider(id string) ([]ModelMetadata, error) {
	p, err := GetProvider(id)
	if err != nil {
		return nil, err
	}
	return append([]ModelMetadata(nil), p.Models...), nil
}

// ModelsByCapability returns every model carrying the given capability tag.
// Never fails; unknown capabilities yield an empty slice.
func ModelsByCapability(capability string) []ModelMetadata {
	all := lo.FlatMap(catalog, func(p Provider, _ int) []ModelMetadata {
		return p.Models
	})
	return lo.Filter(all, func(m ModelMetadata, _ int) bool {
		return lo.Contains(m.Capabilities, capability)
	})
}

// Providers returns the full catalog in declaration order.
func Providers() []Provider {
	return append([]Provider(nil), catalog...)
}

// DefaultTarget is the catalog default invocation target, used when neither
// CLI flags nor configured defaults name one.
func DefaultTarget() ProviderModel {
	return ProviderModel{Provider: ProviderGoogle, Model: "gemini-2.5-flash"}
}

// DefaultFallbacks returns the hardcoded fallback pairs with any pair
// targeting the primary provider removed.
func DefaultFallbacks(primaryProvider string) []ProviderModel {
	return lo.Filter(defaultFallbacks, func(pm ProviderModel, _ int) bool {
		return pm.Provider != primaryProvider
	})
}
