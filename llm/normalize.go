package llm

import (
	"encoding/json"
)

const noTextGenerated = "No text generated"

// ExtractText selects the buffered text from a raw provider payload.
//
// Providers disagree about shape, so the selection order is fixed and must
// not change: parts[0].text first, then a top-level text field, then a
// string coercion of the whole payload, then the "No text generated"
// literal when nothing remains.
func ExtractText(raw map[string]any) string {
	if parts, ok := raw["parts"].([]any); ok && len(parts) > 0 {
		if first, ok := parts[0].(map[string]any); ok {
			if text, ok := first["text"].(string); ok && text != "" {
				return text
			}
		}
	}

	if text, ok := raw["text"].(string); ok && text != "" {
		return text
	}

	if len(raw) > 0 {
		if coerced, err := json.Marshal(raw); err == nil && len(coerced) > 2 {
			return string(coerced)
		}
	}

	return noTextGenerated
}

// ExtractUsage reads token counts from provider response metadata. Each
// count is probed under the key names providers actually use; missing fields
// default to zero and an unreported total is computed as the sum of the
// three token kinds. Never fails.
func ExtractUsage(meta map[string]any) Usage {
	u := Usage{
		InputTokens:    tokenCount(meta, "promptTokens", "inputTokens"),
		OutputTokens:   tokenCount(meta, "completionTokens", "outputTokens"),
		ThinkingTokens: tokenCount(meta, "reasoningTokens", "thinkingTokens"),
		TotalTokens:    tokenCount(meta, "totalTokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens + u.ThinkingTokens
	}
	return u
}

// NewUsageRecord binds a usage to its target and prices it from the catalog.
// Unknown models cost zero rather than failing the operation.
func NewUsageRecord(target ProviderModel, u Usage) UsageRecord {
	rec := UsageRecord{
		Provider: target.Provider,
		Model:    target.Model,
		Usage:    u,
	}
	meta, err := GetModel(target.Model)
	if err != nil {
		return rec
	}
	rec.InputCost = float64(u.InputTokens) / 1e6 * meta.CostPer1MIn
	rec.OutputCost = float64(u.OutputTokens+u.ThinkingTokens) / 1e6 * meta.CostPer1MOut
	rec.TotalCost = rec.InputCost + rec.OutputCost
	rec.EstimatedCost = rec.TotalCost
	return rec
}

// tokenCount probes meta under each key in order and returns the first
// non-negative count found. Provider JSON decodes numbers as float64; typed
// SDK values arrive as ints.
func tokenCount(meta map[string]any, keys ...string) int64 {
	for _, key := range keys {
		v, ok := meta[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			if n > 0 {
				return n
			}
		case int:
			if n > 0 {
				return int64(n)
			}
		case float64:
			if n > 0 {
				return int64(n)
			}
		case json.Number:
			if i, err := n.Int64(); err == nil && i > 0 {
				return i
			}
		}
	}
	return 0
}
