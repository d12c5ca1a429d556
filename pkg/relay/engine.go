package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briansrls/the-circle/internal/observability"
	"github.com/briansrls/the-circle/internal/tracing"
	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrInsufficientAgents is returned when a roster has fewer than two agents.
	ErrInsufficientAgents = errors.New("not enough agents (need at least two)")

	// ErrInvalidRounds is returned for a negative round count.
	ErrInvalidRounds = errors.New("rounds must not be negative")
)

// MinAgents is the smallest roster a relay accepts.
const MinAgents = 2

// Options configures an Engine.
type Options struct {
	Logger zerolog.Logger

	// BufferSize is the event channel capacity. Zero hands every event over
	// synchronously, so production never runs ahead of consumption.
	BufferSize int

	// EmitPending emits a pending event before each call.
	EmitPending bool
}

// Engine runs relays. An Engine holds no per-relay state and may start any
// number of independent relays, provided they do not share Agents.
type Engine struct {
	logger      zerolog.Logger
	bufferSize  int
	emitPending bool
}

// NewEngine creates a relay engine.
func NewEngine(opts Options) *Engine {
	if opts.BufferSize < 0 {
		opts.BufferSize = 0
	}
	return &Engine{
		logger:      opts.Logger,
		bufferSize:  opts.BufferSize,
		emitPending: opts.EmitPending,
	}
}

// Validate checks the startup conditions of a relay without making any calls.
func Validate(roster []*agent.Agent, rounds int) error {
	if len(roster) < MinAgents {
		return fmt.Errorf("%w: got %d", ErrInsufficientAgents, len(roster))
	}
	if rounds < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRounds, rounds)
	}
	for i, a := range roster {
		if a == nil {
			return fmt.Errorf("roster entry %d is nil", i)
		}
	}
	return nil
}

// Start validates the roster and launches a relay over round 0 plus rounds
// further rounds. Events are delivered on the returned Stream in call order.
// Cancelling ctx stops the relay at its next hand-off or call.
func (e *Engine) Start(ctx context.Context, roster []*agent.Agent, seed string, rounds int) (*Stream, error) {
	if err := Validate(roster, rounds); err != nil {
		return nil, err
	}

	ctx, relayID := tracing.NewRelayContext(ctx)
	s := newStream(relayID, e.bufferSize)

	agents := append([]*agent.Agent(nil), roster...)
	go e.produce(ctx, s, agents, seed, rounds)

	return s, nil
}

// Run starts a relay and hands every event to fn in order. A non-nil error
// from fn stops the relay and is returned.
func (e *Engine) Run(ctx context.Context, roster []*agent.Agent, seed string, rounds int, fn func(Event) error) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := e.Start(ctx, roster, seed, rounds)
	if err != nil {
		return Result{}, err
	}

	var sinkErr error
	for ev := range s.Events() {
		if sinkErr != nil {
			continue
		}
		if fn == nil {
			continue
		}
		if sinkErr = fn(ev); sinkErr != nil {
			cancel()
		}
	}

	res, err := s.Wait()
	if sinkErr != nil {
		return res, sinkErr
	}
	return res, err
}

func (e *Engine) produce(ctx context.Context, s *Stream, roster []*agent.Agent, seed string, rounds int) {
	start := time.Now()
	cur := newCursor(len(roster), rounds)

	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "relay.run",
		tracing.AttrRelayID.String(s.id),
	)
	logger := tracing.LoggerFromContext(ctx, e.logger)

	observability.RecordRelayStart()
	logger.Info().
		Int("agents", len(roster)).
		Int("rounds", rounds).
		Int("turns", cur.total()).
		Msg("Relay started")

	res := Result{RelayID: s.id}
	var runErr error

	defer func() {
		res.Duration = time.Since(start)
		outcome := "completed"
		if runErr != nil {
			outcome = "cancelled"
			span.SetStatus(codes.Error, runErr.Error())
			logger.Warn().Err(runErr).Int("turns", res.Turns).Dur("duration", res.Duration).Msg("Relay stopped early")
		} else {
			logger.Info().Int("turns", res.Turns).Float64("cost", res.Cost).Dur("duration", res.Duration).Msg("Relay finished")
		}
		observability.RecordRelayEnd(outcome, res.Duration)
		observability.RecordRelayAudit(ctx, s.id, "relay_"+outcome, outcome, map[string]interface{}{
			"turns":  res.Turns,
			"tokens": res.Tokens,
			"cost":   res.Cost,
		})
		span.End()
		s.finish(res, runErr)
	}()

	seq := 0
	emit := func(ev Event) bool {
		ev.RelayID = s.id
		ev.Seq = seq
		ev.Time = time.Now()
		select {
		case s.events <- ev:
			seq++
			return true
		case <-ctx.Done():
			runErr = ctx.Err()
			return false
		}
	}

	seedRecord := TurnRecord{
		Agent:  SeedAuthor,
		Source: SeedAuthor,
		Model:  SeedModel,
		Text:   seed,
		Status: agent.StatusSuccess,
	}
	if !emit(Event{Type: EventSeed, Turn: &seedRecord}) {
		return
	}

	current := seed
	replies := make([]string, 0, len(roster))

	for !cur.done() {
		round, index, state := cur.round, cur.index, cur.state()
		a := roster[index]

		if e.emitPending {
			pending := TurnRecord{
				Agent:  a.Name(),
				Source: string(a.Kind()),
				Model:  a.Model(),
				Round:  round,
				Index:  index,
				Input:  current,
				Text:   PendingText,
			}
			if !emit(Event{Type: EventPending, Turn: &pending, Round: round}) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			return
		}

		logger.Debug().Str("state", state.String()).Int("round", round).Str("agent", a.Name()).Msg("Turn starting")
		rec := e.turn(ctx, logger, s.id, a, round, index, current)
		if rec.Status == agent.StatusCancelled {
			runErr = ctx.Err()
			return
		}

		res.Turns++
		res.Tokens += rec.Tokens
		res.Cost += rec.Cost

		if !emit(Event{Type: EventTurn, Turn: &rec, Round: round}) {
			return
		}

		current = rec.Text
		replies = append(replies, rec.Text)

		if cur.advance() {
			current = strings.Join(replies, "\n")
			replies = replies[:0]
			if !emit(Event{Type: EventRoundComplete, Round: round, Context: current}) {
				return
			}
		}
	}

	res.Final = current
	emit(Event{Type: EventComplete, Round: rounds, Context: current})
}

func (e *Engine) turn(ctx context.Context, logger zerolog.Logger, relayID string, a *agent.Agent, round, index int, input string) TurnRecord {
	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "relay.turn",
		tracing.AttrRelayID.String(relayID),
		tracing.AttrAgent.String(a.Name()),
		tracing.AttrBackend.String(string(a.Kind())),
		tracing.AttrModel.String(a.Model()),
		tracing.AttrRound.Int(round),
	)
	defer span.End()
	ctx = tracing.WithAgent(ctx, a.Name())

	out := a.Send(ctx, input)
	m := a.LastMetrics()

	rec := TurnRecord{
		Agent:   a.Name(),
		Source:  string(a.Kind()),
		Model:   a.Model(),
		Round:   round,
		Index:   index,
		Input:   input,
		Text:    out.Text,
		Status:  out.Status,
		Latency: m.Latency,
		Tokens:  m.Tokens,
		Cost:    m.Cost,
	}

	span.SetAttributes(
		tracing.AttrStatus.String(string(out.Status)),
		tracing.AttrTokens.Int(m.Tokens),
	)
	if out.Status == agent.StatusCancelled {
		return rec
	}
	if !out.OK() {
		span.SetStatus(codes.Error, string(out.Status))
	}

	observability.RecordTurn(rec.Source, string(rec.Status), rec.Latency, rec.Tokens, rec.Cost)
	observability.RecordTurnAudit(ctx, relayID, rec.Agent, string(rec.Status), map[string]interface{}{
		"round":      round,
		"model":      rec.Model,
		"backend":    rec.Source,
		"latency_ms": rec.Latency.Milliseconds(),
		"tokens":     rec.Tokens,
	})

	logger.Debug().
		Str("agent", rec.Agent).
		Int("round", round).
		Str("status", string(rec.Status)).
		Dur("latency", rec.Latency).
		Int("tokens", rec.Tokens).
		Msg("Turn completed")

	return rec
}
