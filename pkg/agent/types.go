package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role tags a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// BackendKind selects which model-serving API an agent is proxied to.
type BackendKind string

const (
	KindOpenAI   BackendKind = "OPENAI"
	KindClaude   BackendKind = "CLAUDE"
	KindGemini   BackendKind = "GEMINI"
	KindDeepSeek BackendKind = "DEEPSEEK"
)

// Kinds lists every supported backend kind.
func Kinds() []BackendKind {
	return []BackendKind{KindOpenAI, KindClaude, KindGemini, KindDeepSeek}
}

// ParseBackendKind resolves a case-insensitive kind name. An empty name
// resolves to KindOpenAI.
func ParseBackendKind(s string) (BackendKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return KindOpenAI, nil
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Status is the normalized result of a single backend call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"

	// StatusCancelled means the caller's context ended first. The backend
	// did not fail, so the turn is not counted against it.
	StatusCancelled Status = "cancelled"
)

// Sentinel replies substituted for failed calls so the relay can continue.
const (
	SentinelTimeout = "Request timed out"
	SentinelError   = "Request failed"
)

// CostPerToken is the flat per-token rate used for cost estimates.
const CostPerToken = 0.0001

// DefaultDeadline bounds every backend call unless overridden.
const DefaultDeadline = 20 * time.Second

var (
	// ErrBackendTimeout is reported when a call does not finish before its deadline.
	ErrBackendTimeout = errors.New("backend call timed out")

	// ErrUnknownKind is returned for backend kinds outside Kinds().
	ErrUnknownKind = errors.New("unknown backend kind")
)

// BackendError wraps a non-timeout failure reported by a backend.
type BackendError struct {
	Kind  BackendKind
	Model string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend (model %s): %v", e.Kind, e.Model, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Outcome is what the call adapter hands back for every call, whatever happened.
type Outcome struct {
	Text    string        `json:"text"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency"`
	Err     error         `json:"-"`
}

// OK reports whether the call produced a real reply.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Metrics are the per-turn measurements an agent keeps for its last send.
type Metrics struct {
	Latency time.Duration `json:"latency"`
	Tokens  int           `json:"tokens"`
	Cost    float64       `json:"cost"`
}

// Definition is a resolved roster entry.
type Definition struct {
	Name         string      `json:"name"`
	SystemPrompt string      `json:"system_prompt"`
	SeedContent  string      `json:"seed_content"`
	Model        string      `json:"model"`
	Kind         BackendKind `json:"kind"`
}

// EstimateTokens counts whitespace separated tokens.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// EstimateCost prices a token count at CostPerToken, rounded to 5 decimals.
func EstimateCost(tokens int) float64 {
	cost := float64(tokens) * CostPerToken
	return float64(int64(cost*1e5+0.5)) / 1e5
}
