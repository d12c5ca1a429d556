package relay

// State is the position of a relay in its round-robin schedule.
type State int

const (
	// StateSeed is round 0, agent 0: the context is the seed message.
	StateSeed State = iota
	// StateInRound0 covers agents 1..N-1 of round 0.
	StateInRound0
	// StateRoundBoundary is agent 0 of a later round, fed the previous round's aggregate.
	StateRoundBoundary
	// StateInRoundK covers agents 1..N-1 of rounds >= 1.
	StateInRoundK
	// StateDone is reached after the last configured round.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSeed:
		return "seed"
	case StateInRound0:
		return "in_round_0"
	case StateRoundBoundary:
		return "round_boundary"
	case StateInRoundK:
		return "in_round_k"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// cursor walks (round, index) pairs for a roster of size agents over round 0
// plus rounds further rounds.
type cursor struct {
	size   int
	rounds int
	round  int
	index  int
}

func newCursor(size, rounds int) *cursor {
	return &cursor{size: size, rounds: rounds}
}

func (c *cursor) state() State {
	switch {
	case c.round > c.rounds:
		return StateDone
	case c.round == 0 && c.index == 0:
		return StateSeed
	case c.round == 0:
		return StateInRound0
	case c.index == 0:
		return StateRoundBoundary
	default:
		return StateInRoundK
	}
}

func (c *cursor) done() bool {
	return c.state() == StateDone
}

// advance moves past the current turn and reports whether that turn closed
// its round.
func (c *cursor) advance() bool {
	c.index++
	if c.index < c.size {
		return false
	}
	c.index = 0
	c.round++
	return true
}

// total is the number of turns the schedule will produce.
func (c *cursor) total() int {
	return (c.rounds + 1) * c.size
}
