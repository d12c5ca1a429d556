package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/briansrls/the-circle/pkg/render"
)

// SSE event names outside the relay's own event types.
const (
	sseEventPreamble   = "preamble"
	sseEventRelayError = "relay_error"
)

// writeSSE writes one event frame followed by a heartbeat comment. Each line
// of data becomes its own data field.
func writeSSE(w io.Writer, event, id, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n: heartbeat\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleStream runs a relay and streams its HTML fragments as Server-Sent
// Events. Errors before the first event are plain HTTP errors; later ones
// arrive as a relay_error event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rounds, err := parseRounds(r.URL.Query().Get("rounds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	message := s.message(r.URL.Query().Get("message"))

	release, ok := s.admit(w, r)
	if !ok {
		return
	}
	defer release()

	roster, ok := s.loadRoster(w, r)
	if !ok {
		return
	}

	started := false
	start := func() error {
		started = true
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		return writeSSE(w, sseEventPreamble, "", render.Preamble())
	}

	res, err := s.engine.Run(r.Context(), roster, message, rounds, func(ev relay.Event) error {
		if !started {
			if err := start(); err != nil {
				return err
			}
		}
		fragment := render.EventHTML(ev)
		if fragment == "" {
			return nil
		}
		if err := writeSSE(w, string(ev.Type), strconv.Itoa(ev.Seq), fragment); err != nil {
			return err
		}
		flush(w)
		return nil
	})

	logger := s.logger.With().Str("relay_id", res.RelayID).Logger()
	switch {
	case err == nil:
		logger.Debug().Int("turns", res.Turns).Msg("Stream finished")
	case !started:
		status, msg := startError(err)
		http.Error(w, msg, status)
	case errors.Is(err, context.Canceled):
		logger.Debug().Int("turns", res.Turns).Msg("Stream client went away")
	default:
		logger.Warn().Err(err).Msg("Stream stopped")
		_ = writeSSE(w, sseEventRelayError, "", render.ErrorPage(err.Error()))
		flush(w)
	}
}
