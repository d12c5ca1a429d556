// Package agenttest provides deterministic backends for exercising agents and
// relays without network access.
package agenttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/stretchr/testify/mock"
)

// EchoBackend replies with the latest inbound message followed by Suffix and
// records every input it saw.
type EchoBackend struct {
	Suffix      string
	BackendKind agent.BackendKind

	mu     sync.Mutex
	inputs []string
}

// NewEchoBackend returns an OPENAI-kind echo backend.
func NewEchoBackend(suffix string) *EchoBackend {
	return &EchoBackend{Suffix: suffix, BackendKind: agent.KindOpenAI}
}

// Complete implements agent.Backend.
func (b *EchoBackend) Complete(_ context.Context, _ string, messages []agent.Message) (string, error) {
	input := LastInbound(messages)

	b.mu.Lock()
	b.inputs = append(b.inputs, input)
	b.mu.Unlock()

	return input + b.Suffix, nil
}

// Kind implements agent.Backend.
func (b *EchoBackend) Kind() agent.BackendKind {
	if b.BackendKind == "" {
		return agent.KindOpenAI
	}
	return b.BackendKind
}

// Inputs returns the inbound messages seen so far, in call order.
func (b *EchoBackend) Inputs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.inputs...)
}

// Calls returns how many times Complete ran.
func (b *EchoBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inputs)
}

// SlowBackend answers Reply after Delay. With IgnoreContext set it keeps
// sleeping through cancellation, like a transport that cannot be interrupted.
type SlowBackend struct {
	Delay         time.Duration
	Reply         string
	IgnoreContext bool
}

// Complete implements agent.Backend.
func (b *SlowBackend) Complete(ctx context.Context, _ string, _ []agent.Message) (string, error) {
	if b.IgnoreContext {
		time.Sleep(b.Delay)
		return b.Reply, nil
	}
	select {
	case <-time.After(b.Delay):
		return b.Reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Kind implements agent.Backend.
func (b *SlowBackend) Kind() agent.BackendKind { return agent.KindGemini }

// ErrStub is the default FailingBackend error.
var ErrStub = errors.New("stub backend failure")

// FailingBackend always fails.
type FailingBackend struct {
	Err error
}

// Complete implements agent.Backend.
func (b *FailingBackend) Complete(context.Context, string, []agent.Message) (string, error) {
	if b.Err == nil {
		return "", ErrStub
	}
	return "", b.Err
}

// Kind implements agent.Backend.
func (b *FailingBackend) Kind() agent.BackendKind { return agent.KindClaude }

// MockBackend is a testify mock of agent.Backend.
type MockBackend struct {
	mock.Mock
}

// Complete implements agent.Backend.
func (m *MockBackend) Complete(ctx context.Context, model string, messages []agent.Message) (string, error) {
	args := m.Called(ctx, model, messages)
	return args.String(0), args.Error(1)
}

// Kind implements agent.Backend.
func (m *MockBackend) Kind() agent.BackendKind {
	args := m.Called()
	return args.Get(0).(agent.BackendKind)
}

// Factory hands out the same backend for every kind and counts requests.
type Factory struct {
	Backend agent.Backend
	Err     error

	mu       sync.Mutex
	requests []agent.BackendKind
}

// NewBackend implements agent.BackendCreator.
func (f *Factory) NewBackend(kind agent.BackendKind) (agent.Backend, error) {
	f.mu.Lock()
	f.requests = append(f.requests, kind)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Backend, nil
}

// Requests returns the kinds requested so far.
func (f *Factory) Requests() []agent.BackendKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.BackendKind(nil), f.requests...)
}

// LastInbound returns the content of the final user entry.
func LastInbound(messages []agent.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == agent.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
