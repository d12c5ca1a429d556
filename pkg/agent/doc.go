// Package agent wraps model backends as relay participants.
//
// Invariants:
// - An agent transcript opens with exactly one context entry and is append-only.
// - Every Send appends one inbound and one outbound entry, success or not.
// - Backend calls are bounded by the Caller deadline; timeouts and failures
//   resolve to sentinel replies rather than errors.
//
// Usage:
//
//	factory := agent.NewProviderFactory(agent.Credentials{OpenAIKey: key})
//	backend, _ := factory.NewBackend(agent.KindOpenAI)
//	a, _ := agent.New(agent.Config{
//		Definition: agent.Definition{Name: "Alice", Model: "gpt-4o-mini", Kind: agent.KindOpenAI},
//		Backend:    backend,
//		Caller:     agent.NewCaller(agent.CallerConfig{Deadline: 20 * time.Second}),
//	})
//	out := a.Send(ctx, "hello")
//	_ = out
package agent
