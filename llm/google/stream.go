package google

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/promptctl/promptctl/llm"
)

// googleStream implements the llm.Stream interface over the API's SSE
// framing. It is pull-based: each Next call reads at most one data frame
// from the wire, and pending events from a multi-part frame drain before
// more is read.
type googleStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []*llm.StreamEvent
	event   *llm.StreamEvent
	usage   *llm.Usage
	err     error
	started bool
	done    bool
}

func newGoogleStream(body io.ReadCloser) *googleStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &googleStream{
		body:    body,
		scanner: scanner,
	}
}

// Next advances to the next event in the stream.
func (s *googleStream) Next() bool {
	if s.err != nil {
		return false
	}

	if !s.started {
		s.started = true
		s.event = &llm.StreamEvent{Type: llm.StreamEventTypeStart}
		return true
	}

	for {
		if len(s.pending) > 0 {
			s.event = s.pending[0]
			s.pending = s.pending[1:]
			return true
		}
		if s.done {
			return false
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = err
				return false
			}
			// EOF without an explicit finish: stop cleanly.
			s.done = true
			s.pending = append(s.pending, s.stopEvent())
			continue
		}

		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var frame generateResponse
		if err := json.Unmarshal([]byte(line[len("data: "):]), &frame); err != nil {
			continue
		}
		s.enqueue(&frame)
	}
}

// Event returns the current event.
func (s *googleStream) Event() *llm.StreamEvent {
	return s.event
}

// Err returns any error that occurred during streaming.
func (s *googleStream) Err() error {
	return s.err
}

// Close closes the stream and releases resources.
func (s *googleStream) Close() error {
	s.done = true
	return s.body.Close()
}

func (s *googleStream) enqueue(frame *generateResponse) {
	if u := frame.UsageMetadata; u != nil {
		s.usage = &llm.Usage{
			InputTokens:    u.PromptTokenCount,
			OutputTokens:   u.CandidatesTokenCount,
			ThinkingTokens: u.ThoughtsTokenCount,
			TotalTokens:    u.TotalTokenCount,
		}
	}

	for _, cand := range frame.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Thought || p.Text == "" {
				continue
			}
			s.pending = append(s.pending, &llm.StreamEvent{
				Type: llm.StreamEventTypeText,
				Text: p.Text,
			})
		}
		if cand.FinishReason != "" {
			s.done = true
			s.pending = append(s.pending, s.stopEvent())
		}
	}
}

func (s *googleStream) stopEvent() *llm.StreamEvent {
	return &llm.StreamEvent{
		Type:  llm.StreamEventTypeStop,
		Usage: s.usage,
		Done:  true,
	}
}

var _ llm.Stream = (*googleStream)(nil)
