package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Caller issues one backend request under a hard wall-clock deadline and
// normalizes whatever happens into an Outcome.
type Caller struct {
	deadline time.Duration
	logger   zerolog.Logger
}

// CallerConfig holds call adapter configuration
type CallerConfig struct {
	Deadline time.Duration
	Logger   zerolog.Logger
}

// NewCaller creates a call adapter. A non-positive deadline selects DefaultDeadline.
func NewCaller(cfg CallerConfig) *Caller {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	return &Caller{
		deadline: cfg.Deadline,
		logger:   cfg.Logger,
	}
}

// Deadline returns the per-call deadline.
func (c *Caller) Deadline() time.Duration {
	return c.deadline
}

type callResult struct {
	text string
	err  error
}

// Call runs backend.Complete and waits at most the deadline for it. On expiry
// the in-flight request is abandoned: its context is cancelled but nothing
// waits for it to return.
func (c *Caller) Call(ctx context.Context, backend Backend, model string, transcript []Message) Outcome {
	logger := c.logger.With().
		Str("backend", string(backend.Kind())).
		Str("model", model).
		Logger()

	// The abandoned goroutine may still be reading after we return.
	messages := append([]Message(nil), transcript...)

	callCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	done := make(chan callResult, 1)
	start := time.Now()

	logger.Debug().Int("messages", len(messages)).Msg("Backend call starting")

	go func() {
		text, err := backend.Complete(callCtx, model, messages)
		done <- callResult{text: text, err: err}
	}()

	timer := time.NewTimer(c.deadline)
	defer timer.Stop()

	var out Outcome
	select {
	case r := <-done:
		out = c.classify(ctx, callCtx, backend, model, r)
	case <-timer.C:
		out = Outcome{Status: StatusTimeout, Text: SentinelTimeout, Err: ErrBackendTimeout}
	case <-ctx.Done():
		out = Outcome{Status: StatusCancelled, Text: SentinelError, Err: ctx.Err()}
	}
	out.Latency = time.Since(start)

	switch out.Status {
	case StatusTimeout:
		logger.Warn().Dur("elapsed", out.Latency).Dur("deadline", c.deadline).Msg("Backend call timed out")
	case StatusError:
		logger.Warn().Err(out.Err).Dur("elapsed", out.Latency).Msg("Backend call failed")
	case StatusCancelled:
		logger.Debug().Err(out.Err).Dur("elapsed", out.Latency).Msg("Backend call abandoned")
	default:
		if out.Latency > c.deadline {
			logger.Warn().Dur("elapsed", out.Latency).Dur("deadline", c.deadline).Msg("Backend call exceeded deadline")
		}
		logger.Debug().Dur("elapsed", out.Latency).Str("reply", out.Text).Msg("Backend call completed")
	}

	return out
}

func (c *Caller) classify(parent, callCtx context.Context, backend Backend, model string, r callResult) Outcome {
	if r.err == nil {
		return Outcome{Status: StatusSuccess, Text: r.text}
	}
	if err := parent.Err(); err != nil {
		return Outcome{Status: StatusCancelled, Text: SentinelError, Err: err}
	}
	// The SDK may notice the deadline a moment before our timer does.
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Status: StatusTimeout, Text: SentinelTimeout, Err: ErrBackendTimeout}
	}
	return Outcome{
		Status: StatusError,
		Text:   SentinelError,
		Err:    &BackendError{Kind: backend.Kind(), Model: model, Err: r.err},
	}
}
