package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/agent/agenttest"
	"github.com/stretchr/testify/assert"
)

func TestCaller(t *testing.T) {
	msgs := []agent.Message{{Role: agent.RoleSystem, Content: "ctx"}, {Role: agent.RoleUser, Content: "hi"}}

	t.Run("should default the deadline", func(t *testing.T) {
		c := agent.NewCaller(agent.CallerConfig{})
		assert.Equal(t, agent.DefaultDeadline, c.Deadline())
	})

	t.Run("should return the reply on success", func(t *testing.T) {
		out := testCaller(time.Second).Call(context.Background(), agenttest.NewEchoBackend("?"), "m", msgs)
		assert.True(t, out.OK())
		assert.Equal(t, "hi?", out.Text)
		assert.NoError(t, out.Err)
	})

	t.Run("should abandon a backend that ignores cancellation", func(t *testing.T) {
		backend := &agenttest.SlowBackend{Delay: 2 * time.Second, Reply: "late", IgnoreContext: true}

		start := time.Now()
		out := testCaller(50*time.Millisecond).Call(context.Background(), backend, "m", msgs)

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, agent.StatusTimeout, out.Status)
		assert.Equal(t, agent.SentinelTimeout, out.Text)
	})

	t.Run("should classify a context-aware timeout as timeout", func(t *testing.T) {
		backend := agent.BackendFunc{
			BackendKind: agent.KindDeepSeek,
			Fn: func(ctx context.Context, _ string, _ []agent.Message) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		}
		out := testCaller(30*time.Millisecond).Call(context.Background(), backend, "m", msgs)
		assert.Equal(t, agent.StatusTimeout, out.Status)
	})

	t.Run("should report errors with the sentinel", func(t *testing.T) {
		boom := errors.New("boom")
		out := testCaller(time.Second).Call(context.Background(), &agenttest.FailingBackend{Err: boom}, "m", msgs)
		assert.Equal(t, agent.StatusError, out.Status)
		assert.Equal(t, agent.SentinelError, out.Text)
		assert.ErrorIs(t, out.Err, boom)
	})

	t.Run("should stop waiting when the parent context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		backend := &agenttest.SlowBackend{Delay: time.Second, IgnoreContext: true}
		out := testCaller(5*time.Second).Call(ctx, backend, "m", msgs)

		assert.Equal(t, agent.StatusCancelled, out.Status)
		assert.Equal(t, agent.SentinelError, out.Text)
		assert.ErrorIs(t, out.Err, context.Canceled)
		assert.False(t, out.OK())
	})

	t.Run("should not blame the backend when the caller goes away", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		backend := agent.BackendFunc{
			BackendKind: agent.KindOpenAI,
			Fn: func(ctx context.Context, _ string, _ []agent.Message) (string, error) {
				cancel()
				<-ctx.Done()
				return "", ctx.Err()
			},
		}

		out := testCaller(5*time.Second).Call(ctx, backend, "m", msgs)

		assert.Equal(t, agent.StatusCancelled, out.Status)
		var backendErr *agent.BackendError
		assert.False(t, errors.As(out.Err, &backendErr))
	})
}

func TestParseBackendKind(t *testing.T) {
	t.Run("should accept known kinds in any case", func(t *testing.T) {
		for input, want := range map[string]agent.BackendKind{
			"openai":   agent.KindOpenAI,
			"Claude":   agent.KindClaude,
			"GEMINI":   agent.KindGemini,
			"deepseek": agent.KindDeepSeek,
			"":         agent.KindOpenAI,
		} {
			got, err := agent.ParseBackendKind(input)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("should reject unknown kinds", func(t *testing.T) {
		_, err := agent.ParseBackendKind("MISTRAL")
		assert.ErrorIs(t, err, agent.ErrUnknownKind)
	})
}

func TestEstimates(t *testing.T) {
	assert.Equal(t, 0, agent.EstimateTokens(""))
	assert.Equal(t, 3, agent.EstimateTokens("  a\tb\n c "))
	assert.InDelta(t, 0.0, agent.EstimateCost(0), 1e-12)
	assert.InDelta(t, 0.0012, agent.EstimateCost(12), 1e-12)
	assert.InDelta(t, 0.12345, agent.EstimateCost(1234), 1e-4)
}
