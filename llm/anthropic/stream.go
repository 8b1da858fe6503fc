package anthropic

import (
	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/promptctl/promptctl/llm"
)

// anthropicStream implements the llm.Stream interface for Anthropic
// streaming responses. Pull-based: each Next call advances the underlying
// SSE stream until a consumer-visible event is found.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	event   *llm.StreamEvent
	usage   *llm.Usage
	err     error
	started bool
	done    bool
}

func newAnthropicStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *anthropicStream {
	return &anthropicStream{stream: stream}
}

// Next advances to the next event in the stream.
func (s *anthropicStream) Next() bool {
	if s.err != nil || s.done {
		return false
	}

	if !s.started {
		s.started = true
		s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStart}
		return true
	}

	for s.stream.Next() {
		switch event := s.stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			s.usage = &llm.Usage{
				InputTokens: event.Message.Usage.InputTokens,
			}
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.event = &llm.StreamEvent{
					Type: llm.StreamEventTypeText,
					Text: delta.Text,
				}
				return true
			}
		case anthropic.MessageDeltaEvent:
			if s.usage == nil {
				s.usage = &llm.Usage{}
			}
			if event.Usage.InputTokens > 0 {
				s.usage.InputTokens = event.Usage.InputTokens
			}
			s.usage.OutputTokens = event.Usage.OutputTokens
			s.usage.TotalTokens = s.usage.InputTokens + s.usage.OutputTokens
		case anthropic.MessageStopEvent:
			s.done = true
			s.event = &llm.StreamEvent{
				Type:  llm.StreamEventTypeStop,
				Usage: s.usage,
				Done:  true,
			}
			return true
		}
	}

	if err := s.stream.Err(); err != nil {
		s.err = convertAnthropicError(err)
		return false
	}

	// Stream ended without an explicit stop event.
	s.done = true
	s.event = &llm.StreamEvent{
		Type:  llm.StreamEventTypeStop,
		Usage: s.usage,
		Done:  true,
	}
	return true
}

// Event returns the current event.
func (s *anthropicStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *anthropicStream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *anthropicStream) Close() error {
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

var _ llm.Stream = (*anthropicStream)(nil)
