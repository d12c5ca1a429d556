package relay

// Stream is the single-pass event sequence of one relay. Events must be
// drained (or the relay's context cancelled) for the relay to finish.
type Stream struct {
	id     string
	events chan Event
	done   chan struct{}

	result Result
	err    error
}

func newStream(id string, buffer int) *Stream {
	return &Stream{
		id:     id,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// ID returns the relay ID.
func (s *Stream) ID() string { return s.id }

// Events returns the event channel. It is closed after the last event, or
// early when the relay's context is cancelled.
func (s *Stream) Events() <-chan Event { return s.events }

// Wait blocks until the relay has stopped and returns its summary. The error
// is the context error when the relay was cancelled before completing.
func (s *Stream) Wait() (Result, error) {
	<-s.done
	return s.result, s.err
}

func (s *Stream) finish(res Result, err error) {
	s.result = res
	s.err = err
	close(s.events)
	close(s.done)
}
