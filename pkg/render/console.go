package render

import (
	"fmt"
	"io"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/relay"
)

// Console prints relay events as plain text. It is a relay.Run sink.
type Console struct {
	w         io.Writer
	first     string
	announced bool
}

// NewConsole creates a console printer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Handle prints one event.
func (c *Console) Handle(ev relay.Event) error {
	var err error
	switch ev.Type {
	case relay.EventSeed:
		_, err = fmt.Fprintf(c.w, "\n--- STARTING TELEPHONE CHAIN ---\nInitial message: %s\n\n", seedText(ev))

	case relay.EventPending:
		if ev.Turn == nil {
			return nil
		}
		c.roundHeader(*ev.Turn)
		_, err = fmt.Fprintf(c.w, "%s receives: %s\n", ev.Turn.Agent, ev.Turn.Input)
		c.announced = true

	case relay.EventTurn:
		if ev.Turn == nil {
			return nil
		}
		rec := *ev.Turn
		if !c.announced {
			c.roundHeader(rec)
			if _, err = fmt.Fprintf(c.w, "%s receives: %s\n", rec.Agent, rec.Input); err != nil {
				return err
			}
		}
		c.announced = false

		_, err = fmt.Fprintf(c.w, "%s sends: %s\n", rec.Agent, rec.Text)
		if err == nil && rec.Status != agent.StatusSuccess {
			_, err = fmt.Fprintf(c.w, "  (%s after %.2fs)\n", rec.Status, rec.Latency.Seconds())
		}
		if err == nil {
			_, err = fmt.Fprintln(c.w)
		}

	case relay.EventRoundComplete:
		_, err = fmt.Fprintf(c.w, "End of round %d. Message will cycle back to %s.\n\n", ev.Round, c.first)

	case relay.EventComplete:
		_, err = fmt.Fprint(c.w, "--- TELEPHONE CHAIN COMPLETE ---\n\n")
	}
	return err
}

func (c *Console) roundHeader(rec relay.TurnRecord) {
	if rec.Index != 0 {
		return
	}
	if rec.Round == 0 {
		c.first = rec.Agent
	}
	fmt.Fprintf(c.w, "\n--- ROUND %d ---\n\n", rec.Round)
}

func seedText(ev relay.Event) string {
	if ev.Turn == nil {
		return ""
	}
	return ev.Turn.Text
}
