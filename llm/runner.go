package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// ClientFactory builds the transport binding for one invocation target. The
// runner calls it once per attempt, so a step whose provider is not
// configured simply fails that step and the plan advances.
type ClientFactory func(target ProviderModel) (Client, error)

// Runner drives an execution plan against provider backends. Steps and
// attempts are strictly sequential: a later attempt never starts before the
// former's failure is classified, since providers charge per call.
type Runner struct {
	factory ClientFactory
	logger  zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(factory ClientFactory, logger zerolog.Logger) *Runner {
	return &Runner{
		factory: factory,
		logger:  logger.With().Str("component", "runner").Logger(),
	}
}

// TextResult is the buffered outcome of a plan run.
type TextResult struct {
	Text       string
	Target     ProviderModel
	Usage      UsageRecord
	StopReason string
}

// ObjectResult is the structured (schema-validated) outcome of a plan run.
type ObjectResult struct {
	Object map[string]any
	Target ProviderModel
	Usage  UsageRecord
}

// Text runs the plan in buffered mode and normalizes the winning response.
func (r *Runner) Text(ctx context.Context, plan Plan, req *Request) (*TextResult, error) {
	var result *TextResult
	err := r.run(ctx, plan, req, func(ctx context.Context, client Client, target ProviderModel, req *Request) error {
		resp, err := client.Synchronous(ctx, req)
		if err != nil {
			return err
		}
		result = &TextResult{
			Text:       resp.Text(),
			Target:     target,
			Usage:      NewUsageRecord(target, ExtractUsage(resp.Meta)),
			StopReason: resp.StopReason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stream runs the plan in streaming mode and hands back the first
// successfully opened stream plus the target that produced it. Failures to
// open a stream drive retry/fallback; mid-stream failures surface to the
// consumer through Stream.Err.
func (r *Runner) Stream(ctx context.Context, plan Plan, req *Request) (Stream, ProviderModel, error) {
	var (
		stream Stream
		winner ProviderModel
	)
	err := r.run(ctx, plan, req, func(ctx context.Context, client Client, target ProviderModel, req *Request) error {
		s, err := client.Stream(ctx, req)
		if err != nil {
			return err
		}
		stream = s
		winner = target
		return nil
	})
	if err != nil {
		return nil, ProviderModel{}, err
	}
	return stream, winner, nil
}

// Object runs the plan in structured mode: the winning response must be a
// JSON object satisfying the schema's required keys.
func (r *Runner) Object(ctx context.Context, plan Plan, req *Request, schema *Schema) (*ObjectResult, error) {
	var result *ObjectResult
	err := r.run(ctx, plan, req, func(ctx context.Context, client Client, target ProviderModel, req *Request) error {
		obj, resp, err := GenerateObject(ctx, client, req, schema)
		if err != nil {
			return err
		}
		result = &ObjectResult{
			Object: obj,
			Target: target,
			Usage:  NewUsageRecord(target, ExtractUsage(resp.Meta)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run is the plan execution loop. Per step it retries up to the step's
// attempt budget with the step's delay between attempts, then advances to
// the next step with no extra delay. Classification does not change the
// retry policy: every failure kind exhausts the budget identically. The
// error returned after full exhaustion is the last attempt's classified
// failure.
//
// Cancellation takes effect at the top of each attempt and during delays
// via the context-aware backoff. Per-attempt failures are logged, not
// surfaced.
func (r *Runner) run(ctx context.Context, plan Plan, req *Request, invoke func(ctx context.Context, client Client, target ProviderModel, req *Request) error) error {
	var lastErr *Error

	for i, step := range plan.Steps {
		stepReq := rebindRequest(req, step.Target)
		attempt := 0

		op := func() error {
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(err)
			}
			attempt++
			client, err := r.factory(step.Target)
			if err != nil {
				return err
			}
			return invoke(ctx, client, step.Target, stepReq)
		}

		notify := func(err error, next time.Duration) {
			r.logger.Warn().
				Str("target", step.Target.String()).
				Int("attempt", attempt).
				Int("attempts", step.Attempts).
				Dur("next_delay", next).
				Err(err).
				Msg("Attempt failed, retrying")
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(step.Delay), uint64(step.Attempts-1)),
			ctx,
		)

		err := backoff.RetryNotify(op, policy, notify)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = Classify(err)
		r.logger.Warn().
			Str("target", step.Target.String()).
			Str("classification", string(lastErr.Type)).
			Int("remaining_steps", len(plan.Steps)-i-1).
			Msg("Step exhausted")
	}

	if lastErr == nil {
		// Empty plan; BuildPlan never produces one.
		return nil
	}
	return lastErr
}

// rebindRequest copies the request template onto a step's model. The
// template itself is never mutated; every step gets a fresh copy.
func rebindRequest(req *Request, target ProviderModel) *Request {
	if req == nil {
		return &Request{Model: target.Model}
	}
	clone := *req
	clone.Model = target.Model
	return &clone
}
