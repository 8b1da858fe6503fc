package llm

import (
	"context"
)

// Client is the single transport capability the plan runner schedules
// against. Implementations wrap one provider's network API and handle its
// wire format internally; nothing above this interface references a concrete
// provider SDK type.
type Client interface {
	// Synchronous sends a request and returns a complete response.
	Synchronous(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a request and returns a lazy stream of events. The caller
	// reads until Next returns false, then checks Err.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream is a lazy, finite, non-restartable sequence of stream events.
// Consumption is single-pass and pull-driven: implementations read from the
// transport only when Next is called, so the consumer's pace bounds
// buffering.
type Stream interface {
	// Next advances to the next event. Returns false when the stream is
	// complete or an error occurs.
	Next() bool

	// Event returns the current event. Only valid after Next returns true.
	Event() *StreamEvent

	// Err returns any error that occurred during streaming.
	Err() error

	// Close closes the stream and releases resources.
	Close() error
}

// Middleware decorates Client calls with cross-cutting concerns (logging,
// usage accounting) without touching provider implementations.
type Middleware interface {
	// BeforeRequest can modify the request or abort it with an error.
	BeforeRequest(ctx context.Context, req *Request) (*Request, error)

	// AfterResponse can inspect or replace a successful response.
	AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error)

	// OnError observes a failure; the returned error replaces the original.
	OnError(ctx context.Context, req *Request, err error) error
}

// MiddlewareFunc implements Middleware from optional funcs.
type MiddlewareFunc struct {
	BeforeRequestFunc func(ctx context.Context, req *Request) (*Request, error)
	AfterResponseFunc func(ctx context.Context, req *Request, resp *Response) (*Response, error)
	OnErrorFunc       func(ctx context.Context, req *Request, err error) error
}

// BeforeRequest calls the BeforeRequestFunc if set.
func (f MiddlewareFunc) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	if f.BeforeRequestFunc != nil {
		return f.BeforeRequestFunc(ctx, req)
	}
	return req, nil
}

// AfterResponse calls the AfterResponseFunc if set.
func (f MiddlewareFunc) AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if f.AfterResponseFunc != nil {
		return f.AfterResponseFunc(ctx, req, resp)
	}
	return resp, nil
}

// OnError calls the OnErrorFunc if set.
func (f MiddlewareFunc) OnError(ctx context.Context, req *Request, err error) error {
	if f.OnErrorFunc != nil {
		return f.OnErrorFunc(ctx, req, err)
	}
	return err
}

// WrapWithMiddleware wraps a Client with middleware. Streaming requests run
// the BeforeRequest/OnError hooks around stream creation; per-event hooks
// are deliberately not offered, keeping streams pull-driven.
func WrapWithMiddleware(client Client, middleware ...Middleware) Client {
	if len(middleware) == 0 {
		return client
	}
	return &clientWithMiddleware{
		client:     client,
		middleware: middleware,
	}
}

type clientWithMiddleware struct {
	client     Client
	middleware []Middleware
}

func (c *clientWithMiddleware) Synchronous(ctx context.Context, req *Request) (*Response, error) {
	req, err := c.before(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Synchronous(ctx, req)
	if err != nil {
		return nil, c.onError(ctx, req, err)
	}

	for i := len(c.middleware) - 1; i >= 0; i-- {
		resp, err = c.middleware[i].AfterResponse(ctx, req, resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *clientWithMiddleware) Stream(ctx context.Context, req *Request) (Stream, error) {
	req, err := c.before(ctx, req)
	if err != nil {
		return nil, err
	}

	stream, err := c.client.Stream(ctx, req)
	if err != nil {
		return nil, c.onError(ctx, req, err)
	}
	return stream, nil
}

func (c *clientWithMiddleware) before(ctx context.Context, req *Request) (*Request, error) {
	var err error
	for _, mw := range c.middleware {
		req, err = mw.BeforeRequest(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (c *clientWithMiddleware) onError(ctx context.Context, req *Request, err error) error {
	for _, mw := range c.middleware {
		err = mw.OnError(ctx, req, err)
		if err == nil {
			break
		}
	}
	return err
}

var _ Client = (*clientWithMiddleware)(nil)
