package agent

import (
	"context"
	"fmt"
)

// Agent is one relay participant: a backend plus the conversation it has had
// so far. An Agent is driven by a single relay at a time and is not safe for
// concurrent Send calls.
type Agent struct {
	name   string
	model  string
	kind   BackendKind
	prompt string

	backend Backend
	caller  *Caller

	transcript []Message
	last       Metrics
}

// Config holds agent construction parameters
type Config struct {
	Definition Definition
	Backend    Backend
	Caller     *Caller
}

// New creates an agent whose transcript opens with a single context entry
// built from the system prompt, seed content and backend kind.
func New(cfg Config) (*Agent, error) {
	def := cfg.Definition
	if def.Name == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}
	if def.Model == "" {
		return nil, fmt.Errorf("agent %s: model cannot be empty", def.Name)
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("agent %s: backend is required", def.Name)
	}
	if def.Kind == "" {
		def.Kind = cfg.Backend.Kind()
	}

	caller := cfg.Caller
	if caller == nil {
		caller = NewCaller(CallerConfig{})
	}

	prompt := ContextPrompt(def.SystemPrompt, def.SeedContent, def.Kind)

	return &Agent{
		name:       def.Name,
		model:      def.Model,
		kind:       def.Kind,
		prompt:     prompt,
		backend:    cfg.Backend,
		caller:     caller,
		transcript: []Message{{Role: RoleSystem, Content: prompt}},
	}, nil
}

// ContextPrompt renders the opening transcript entry.
func ContextPrompt(systemPrompt, seed string, kind BackendKind) string {
	return fmt.Sprintf("%s\n\nSeed file:\n%s\nAI Type: %s", systemPrompt, seed, kind)
}

// Name returns the agent name
func (a *Agent) Name() string { return a.name }

// Model returns the model identifier
func (a *Agent) Model() string { return a.model }

// Kind returns the backend kind
func (a *Agent) Kind() BackendKind { return a.kind }

// LastMetrics returns the measurements of the most recent Send.
func (a *Agent) LastMetrics() Metrics { return a.last }

// Transcript returns a copy of the conversation so far.
func (a *Agent) Transcript() []Message {
	return append([]Message(nil), a.transcript...)
}

// Len returns the transcript length.
func (a *Agent) Len() int { return len(a.transcript) }

// Send appends message to the transcript, asks the backend for a reply with
// the whole transcript as context and appends the reply. Failed calls append
// a sentinel reply instead, so every Send grows the transcript by exactly two.
func (a *Agent) Send(ctx context.Context, message string) Outcome {
	a.transcript = append(a.transcript, Message{Role: RoleUser, Content: message})

	out := a.caller.Call(ctx, a.backend, a.model, a.transcript)

	a.transcript = append(a.transcript, Message{Role: RoleAssistant, Content: out.Text})

	m := Metrics{Latency: out.Latency}
	if out.OK() {
		m.Tokens = EstimateTokens(out.Text)
		m.Cost = EstimateCost(m.Tokens)
	}
	a.last = m

	return out
}
