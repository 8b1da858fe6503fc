package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Schema describes the JSON object a structured generation must produce.
// Properties use JSON-schema vocabulary; only Required is enforced locally,
// the rest is passed to the model as guidance.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ParseSchema decodes a JSON schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if s.Type == "" {
		s.Type = "object"
	}
	return &s, nil
}

// GenerateObject performs one structured generation against a client: the
// prompt is extended with the schema and a JSON-only instruction, the
// buffered response is stripped of code fences and decoded, and the schema's
// required keys are checked. Schema violations classify as invalid input.
func GenerateObject(ctx context.Context, client Client, req *Request, schema *Schema) (map[string]any, *Response, error) {
	if schema == nil {
		return nil, nil, fmt.Errorf("schema is required")
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	structured := *req
	structured.Prompt = fmt.Sprintf(
		"%s\n\nRespond with a single JSON object matching this JSON schema. Output only the JSON object, no prose, no code fences.\n\nSchema:\n%s",
		req.Prompt, schemaJSON,
	)

	resp, err := client.Synchronous(ctx, &structured)
	if err != nil {
		return nil, nil, err
	}

	text := stripFences(resp.Text())
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, resp, NewInvalidInputError("model output is not a JSON object", err)
	}

	for _, key := range schema.Required {
		if _, ok := obj[key]; !ok {
			return nil, resp, NewInvalidInputError(fmt.Sprintf("model output missing required key %q", key), nil)
		}
	}

	return obj, resp, nil
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite instructions.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
