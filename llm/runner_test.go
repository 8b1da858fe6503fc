package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedClient fails a fixed number of times before succeeding.
type scriptedClient struct {
	target    ProviderModel
	failures  int
	failWith  error
	calls     int
	responses *Response
}

func (c *scriptedClient) Synchronous(ctx context.Context, req *Request) (*Response, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.failWith
	}
	if c.responses != nil {
		return c.responses, nil
	}
	return &Response{
		Raw:  map[string]any{"text": "ok from " + c.target.String()},
		Meta: map[string]any{"inputTokens": int64(5), "outputTokens": int64(7)},
	}, nil
}

func (c *scriptedClient) Stream(ctx context.Context, req *Request) (Stream, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.failWith
	}
	return newFakeStream("streamed from " + c.target.String()), nil
}

// fakeStream yields start, one text event, and a stop event.
type fakeStream struct {
	events []StreamEvent
	idx    int
}

func newFakeStream(text string) *fakeStream {
	return &fakeStream{
		events: []StreamEvent{
			{Type: StreamEventTypeStart},
			{Type: StreamEventTypeText, Text: text},
			{Type: StreamEventTypeStop, Usage: &Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}, Done: true},
		},
	}
}

func (s *fakeStream) Next() bool {
	if s.idx >= len(s.events) {
		return false
	}
	s.idx++
	return true
}

func (s *fakeStream) Event() *StreamEvent { return &s.events[s.idx-1] }
func (s *fakeStream) Err() error          { return nil }
func (s *fakeStream) Close() error        { return nil }

// scriptedFactory hands out one scripted client per target and records the
// order in which targets were requested.
type scriptedFactory struct {
	clients map[ProviderModel]*scriptedClient
	order   []ProviderModel
}

func newScriptedFactory() *scriptedFactory {
	return &scriptedFactory{clients: make(map[ProviderModel]*scriptedClient)}
}

func (f *scriptedFactory) add(target ProviderModel, failures int, failWith error) *scriptedClient {
	c := &scriptedClient{target: target, failures: failures, failWith: failWith}
	f.clients[target] = c
	return c
}

func (f *scriptedFactory) factory() ClientFactory {
	return func(target ProviderModel) (Client, error) {
		f.order = append(f.order, target)
		c, ok := f.clients[target]
		if !ok {
			return nil, errors.New("no client for " + target.String())
		}
		return c, nil
	}
}

// fastPlan is a plan with zero delays so tests run instantly.
func fastPlan(steps ...PlanStep) Plan {
	return Plan{Steps: steps}
}

func step(t ProviderModel, attempts int) PlanStep {
	return PlanStep{Target: t, Attempts: attempts, Delay: 0}
}

func TestRunnerTextFirstAttemptSucceeds(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	f := newScriptedFactory()
	f.add(primary, 0, nil)

	runner := NewRunner(f.factory(), zerolog.Nop())
	result, err := runner.Text(context.Background(), fastPlan(step(primary, 2)), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != primary {
		t.Errorf("winner should be primary, got %v", result.Target)
	}
	if result.Text != "ok from google/gemini-2.5-flash" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if result.Usage.TotalTokens != 12 {
		t.Errorf("usage should normalize from response metadata, got %+v", result.Usage)
	}
	if f.clients[primary].calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", f.clients[primary].calls)
	}
}

func TestRunnerTextRetriesThenSucceedsWithinStep(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	f := newScriptedFactory()
	f.add(primary, 1, errors.New("rate limit"))

	runner := NewRunner(f.factory(), zerolog.Nop())
	result, err := runner.Text(context.Background(), fastPlan(step(primary, 2)), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != primary {
		t.Errorf("winner should still be primary, got %v", result.Target)
	}
	if f.clients[primary].calls != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 success), got %d", f.clients[primary].calls)
	}
}

func TestRunnerTextFallsBackAfterPrimaryExhausts(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	fallback := target("openai", "gpt-4o-mini")
	f := newScriptedFactory()
	f.add(primary, 10, errors.New("rate limit hit"))
	f.add(fallback, 0, nil)

	runner := NewRunner(f.factory(), zerolog.Nop())
	result, err := runner.Text(context.Background(),
		fastPlan(step(primary, 2), step(fallback, 1)),
		&Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != fallback {
		t.Errorf("winner should be the fallback, got %v", result.Target)
	}
	if f.clients[primary].calls != 2 {
		t.Errorf("primary should exhaust its 2 attempts, got %d calls", f.clients[primary].calls)
	}
	if f.clients[fallback].calls != 1 {
		t.Errorf("fallback should be called once, got %d calls", f.clients[fallback].calls)
	}
}

func TestRunnerStepsRunInOrder(t *testing.T) {
	first := target("google", "gemini-2.5-flash")
	second := target("openai", "gpt-4o-mini")
	third := target("anthropic", "claude-haiku-4-5")

	f := newScriptedFactory()
	f.add(first, 10, errors.New("down"))
	f.add(second, 10, errors.New("down"))
	f.add(third, 0, nil)

	runner := NewRunner(f.factory(), zerolog.Nop())
	result, err := runner.Text(context.Background(),
		fastPlan(step(first, 1), step(second, 1), step(third, 1)),
		&Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != third {
		t.Errorf("winner should be the last step, got %v", result.Target)
	}

	expected := []ProviderModel{first, second, third}
	if len(f.order) != len(expected) {
		t.Fatalf("expected %d factory calls, got %d", len(expected), len(f.order))
	}
	for i, want := range expected {
		if f.order[i] != want {
			t.Errorf("call %d: got %v, want %v", i, f.order[i], want)
		}
	}
}

func TestRunnerReturnsLastClassifiedError(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	fallback := target("openai", "gpt-4o-mini")

	f := newScriptedFactory()
	f.add(primary, 10, errors.New("rate limit"))
	f.add(fallback, 10, errors.New("quota exhausted"))

	runner := NewRunner(f.factory(), zerolog.Nop())
	_, err := runner.Text(context.Background(),
		fastPlan(step(primary, 2), step(fallback, 1)),
		&Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected an error after full exhaustion")
	}

	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("error should be classified, got %T", err)
	}
	if llmErr.Type != ErrorTypeQuotaExceeded {
		t.Errorf("error should reflect the last step's failure, got %s", llmErr.Type)
	}
}

func TestRunnerClassificationDoesNotChangeAttemptBudget(t *testing.T) {
	// Invalid-input failures burn the same attempt budget as transient ones.
	primary := target("google", "gemini-2.5-flash")
	f := newScriptedFactory()
	f.add(primary, 10, NewInvalidInputError("bad prompt", nil))

	runner := NewRunner(f.factory(), zerolog.Nop())
	_, err := runner.Text(context.Background(), fastPlan(step(primary, 3)), &Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if f.clients[primary].calls != 3 {
		t.Errorf("expected the full 3 attempts regardless of classification, got %d", f.clients[primary].calls)
	}
}

func TestRunnerRequestTemplateNotMutated(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	fallback := target("openai", "gpt-4o-mini")
	f := newScriptedFactory()
	f.add(primary, 10, errors.New("down"))
	f.add(fallback, 0, nil)

	req := &Request{Model: "gemini-2.5-flash", Prompt: "hi"}
	runner := NewRunner(f.factory(), zerolog.Nop())
	if _, err := runner.Text(context.Background(),
		fastPlan(step(primary, 1), step(fallback, 1)), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Model != "gemini-2.5-flash" {
		t.Errorf("request template was mutated: model is now %q", req.Model)
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	f := newScriptedFactory()
	f.add(primary, 10, errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(f.factory(), zerolog.Nop())
	_, err := runner.Text(ctx, fastPlan(step(primary, 3)), &Request{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.clients[primary].calls != 0 {
		t.Errorf("no attempt should start after cancellation, got %d calls", f.clients[primary].calls)
	}
}

func TestRunnerCancellationDuringRetryDelay(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	f := newScriptedFactory()
	f.add(primary, 10, errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	runner := NewRunner(f.factory(), zerolog.Nop())
	start := time.Now()
	_, err := runner.Text(ctx, fastPlan(PlanStep{Target: primary, Attempts: 5, Delay: 10 * time.Second}), &Request{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation should interrupt the delay, took %v", elapsed)
	}
}

func TestRunnerStream(t *testing.T) {
	primary := target("google", "gemini-2.5-flash")
	fallback := target("openai", "gpt-4o-mini")
	f := newScriptedFactory()
	f.add(primary, 10, errors.New("down"))
	f.add(fallback, 0, nil)

	runner := NewRunner(f.factory(), zerolog.Nop())
	stream, winner, err := runner.Stream(context.Background(),
		fastPlan(step(primary, 1), step(fallback, 1)),
		&Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if winner != fallback {
		t.Errorf("winner should be the fallback, got %v", winner)
	}

	var text string
	var sawStart, sawStop bool
	for stream.Next() {
		ev := stream.Event()
		switch ev.Type {
		case StreamEventTypeStart:
			sawStart = true
		case StreamEventTypeText:
			text += ev.Text
		case StreamEventTypeStop:
			sawStop = true
		}
	}
	if !sawStart || !sawStop {
		t.Errorf("stream should bracket text with start and stop events")
	}
	if text != "streamed from openai/gpt-4o-mini" {
		t.Errorf("unexpected streamed text %q", text)
	}
}

func TestRunnerFactoryFailureAdvancesPlan(t *testing.T) {
	// A provider with no credentials fails at client construction; the plan
	// should advance to the next step rather than abort.
	primary := target("google", "gemini-2.5-flash")
	fallback := target("openai", "gpt-4o-mini")
	f := newScriptedFactory()
	f.add(fallback, 0, nil)
	// No client registered for primary: factory errors for it.

	runner := NewRunner(f.factory(), zerolog.Nop())
	result, err := runner.Text(context.Background(),
		fastPlan(step(primary, 2), step(fallback, 1)),
		&Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != fallback {
		t.Errorf("winner should be the fallback, got %v", result.Target)
	}
}
