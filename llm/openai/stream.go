package openai

import (
	"errors"
	"io"

	"github.com/promptctl/promptctl/llm"
	openai "github.com/sashabaranov/go-openai"
)

// openaiStream implements the llm.Stream interface for OpenAI streaming
// responses. Pull-based: each Next call does at most one Recv on the
// underlying SSE stream.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	event   *llm.StreamEvent
	usage   *llm.Usage
	err     error
	started bool
	done    bool
}

func newOpenAIStream(stream *openai.ChatCompletionStream) *openaiStream {
	return &openaiStream{stream: stream}
}

// Next advances to the next event in the stream.
func (s *openaiStream) Next() bool {
	if s.err != nil || s.done {
		return false
	}

	if !s.started {
		s.started = true
		s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStart}
		return true
	}

	for {
		chunk, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				s.event = s.stopEvent()
				return true
			}
			s.err = convertOpenAIError(err)
			return false
		}

		// The usage-bearing final chunk has no choices.
		if chunk.Usage != nil {
			s.usage = &llm.Usage{
				InputTokens:  int64(chunk.Usage.PromptTokens),
				OutputTokens: int64(chunk.Usage.CompletionTokens),
				TotalTokens:  int64(chunk.Usage.TotalTokens),
			}
			if details := chunk.Usage.CompletionTokensDetails; details != nil {
				s.usage.ThinkingTokens = int64(details.ReasoningTokens)
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			s.event = &llm.StreamEvent{
				Type: llm.StreamEventTypeText,
				Text: choice.Delta.Content,
			}
			return true
		}
		if choice.FinishReason != "" {
			// Keep reading: the usage chunk follows the finish reason.
			continue
		}
	}
}

// Event returns the current event.
func (s *openaiStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *openaiStream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *openaiStream) Close() error {
	s.done = true
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

func (s *openaiStream) stopEvent() *llm.StreamEvent {
	return &llm.StreamEvent{
		Type:  llm.StreamEventTypeStop,
		Usage: s.usage,
		Done:  true,
	}
}

var _ llm.Stream = (*openaiStream)(nil)
