package relay

import (
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
)

// EventType identifies what an Event carries.
type EventType string

const (
	// EventSeed frames the seed message before any call is made.
	EventSeed EventType = "seed"
	// EventPending announces that an agent's call is about to start.
	EventPending EventType = "pending"
	// EventTurn carries one completed turn.
	EventTurn EventType = "turn"
	// EventRoundComplete carries the aggregate context a round produced.
	EventRoundComplete EventType = "round_complete"
	// EventComplete closes the relay with the final aggregate.
	EventComplete EventType = "complete"
)

// Seed record attribution.
const (
	SeedAuthor = "User"
	SeedModel  = "N/A"
)

// PendingText is the placeholder message carried by pending records.
const PendingText = "Pending... Service is starting..."

// TurnRecord describes one agent turn. Records are values and are never
// modified after they are emitted.
type TurnRecord struct {
	Agent   string        `json:"agent"`
	Source  string        `json:"source"`
	Model   string        `json:"model"`
	Round   int           `json:"round"`
	Index   int           `json:"index"`
	Input   string        `json:"input,omitempty"`
	Text    string        `json:"message"`
	Status  agent.Status  `json:"status"`
	Latency time.Duration `json:"latency"`
	Tokens  int           `json:"tokens"`
	Cost    float64       `json:"cost"`
}

// Event is one element of a relay's ordered output.
type Event struct {
	Type    EventType `json:"type"`
	RelayID string    `json:"relay_id"`
	Seq     int       `json:"seq"`
	Time    time.Time `json:"time"`

	// Turn is set for seed, pending and turn events.
	Turn *TurnRecord `json:"turn,omitempty"`

	// Round and Context are set for round_complete and complete events.
	Round   int    `json:"round"`
	Context string `json:"context,omitempty"`
}

// Result summarizes a finished relay.
type Result struct {
	RelayID  string        `json:"relay_id"`
	Final    string        `json:"final"`
	Turns    int           `json:"turns"`
	Tokens   int           `json:"tokens"`
	Cost     float64       `json:"cost"`
	Duration time.Duration `json:"duration"`
}
