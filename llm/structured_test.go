package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// cannedClient returns a fixed response and records the last request.
type cannedClient struct {
	resp    *Response
	err     error
	lastReq *Request
}

func (c *cannedClient) Synchronous(ctx context.Context, req *Request) (*Response, error) {
	c.lastReq = req
	return c.resp, c.err
}

func (c *cannedClient) Stream(ctx context.Context, req *Request) (Stream, error) {
	return nil, errors.New("not implemented")
}

func textResponse(text string) *Response {
	return &Response{Raw: map[string]any{"text": text}}
}

func TestGenerateObject(t *testing.T) {
	client := &cannedClient{resp: textResponse(`{"name": "Ada", "age": 36}`)}
	schema := &Schema{Type: "object", Required: []string{"name", "age"}}

	obj, resp, err := GenerateObject(context.Background(), client, &Request{Prompt: "who"}, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected the raw response back")
	}
	if obj["name"] != "Ada" {
		t.Errorf("unexpected object %v", obj)
	}

	// The schema and a JSON-only instruction are appended to the prompt; the
	// caller's request is untouched.
	if !strings.Contains(client.lastReq.Prompt, "JSON") || !strings.Contains(client.lastReq.Prompt, "who") {
		t.Errorf("prompt should carry the original text and the JSON instruction, got %q", client.lastReq.Prompt)
	}
}

func TestGenerateObjectStripsCodeFences(t *testing.T) {
	client := &cannedClient{resp: textResponse("```json\n{\"ok\": true}\n```")}
	schema := &Schema{Type: "object"}

	obj, _, err := GenerateObject(context.Background(), client, &Request{Prompt: "x"}, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["ok"] != true {
		t.Errorf("unexpected object %v", obj)
	}
}

func TestGenerateObjectRejectsNonJSON(t *testing.T) {
	client := &cannedClient{resp: textResponse("I cannot answer in JSON, sorry.")}
	schema := &Schema{Type: "object"}

	_, _, err := GenerateObject(context.Background(), client, &Request{Prompt: "x"}, schema)
	if !IsInvalidInput(err) {
		t.Errorf("non-JSON output should classify as invalid input, got %v", err)
	}
}

func TestGenerateObjectEnforcesRequiredKeys(t *testing.T) {
	client := &cannedClient{resp: textResponse(`{"name": "Ada"}`)}
	schema := &Schema{Type: "object", Required: []string{"name", "age"}}

	_, _, err := GenerateObject(context.Background(), client, &Request{Prompt: "x"}, schema)
	if !IsInvalidInput(err) {
		t.Errorf("missing required key should classify as invalid input, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "age") {
		t.Errorf("error should name the missing key, got %v", err)
	}
}

func TestGenerateObjectRequiresSchema(t *testing.T) {
	client := &cannedClient{resp: textResponse(`{}`)}
	if _, _, err := GenerateObject(context.Background(), client, &Request{Prompt: "x"}, nil); err == nil {
		t.Error("nil schema should be rejected")
	}
}

func TestGenerateObjectPropagatesClientError(t *testing.T) {
	wantErr := NewRateLimitedError("slow down", nil)
	client := &cannedClient{err: wantErr}
	schema := &Schema{Type: "object"}

	_, _, err := GenerateObject(context.Background(), client, &Request{Prompt: "x"}, schema)
	if !errors.Is(err, wantErr) {
		t.Errorf("client error should pass through, got %v", err)
	}
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(`{"properties": {"name": {"type": "string"}}, "required": ["name"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Type != "object" {
		t.Errorf("missing type should default to object, got %q", s.Type)
	}
	if len(s.Required) != 1 || s.Required[0] != "name" {
		t.Errorf("unexpected required list %v", s.Required)
	}

	if _, err := ParseSchema([]byte("{broken")); err == nil {
		t.Error("malformed schema should fail to parse")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{name: "plain", in: `{"a":1}`, expected: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "surrounding whitespace", in: "  \n```json\n{\"a\":1}\n```\n ", expected: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
