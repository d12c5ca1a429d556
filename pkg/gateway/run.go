package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/briansrls/the-circle/pkg/render"
)

// handleRun runs a relay from a form post and streams the page as chunked
// HTML, flushing after every fragment.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	rounds, err := parseRounds(r.PostForm.Get("rounds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	message := s.message(r.PostForm.Get("message"))

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
	res, err := s.engine.Run(r.Context(), roster, message, rounds, func(ev relay.Event) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			if _, err := io.WriteString(w, render.Preamble()); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, render.EventHTML(ev)); err != nil {
			return err
		}
		flush(w)
		return nil
	})

	switch {
	case err == nil:
		s.logger.Debug().Str("relay_id", res.RelayID).Int("turns", res.Turns).Msg("Run finished")
	case !started:
		status, msg := startError(err)
		http.Error(w, msg, status)
	case errors.Is(err, context.Canceled):
		s.logger.Debug().Str("relay_id", res.RelayID).Msg("Run client went away")
	default:
		s.logger.Warn().Err(err).Str("relay_id", res.RelayID).Msg("Run stopped")
	}
}
