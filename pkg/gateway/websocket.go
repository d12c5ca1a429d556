package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/internal/observability"
	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CodeCancelled is the error code sent when a client cancels its relay.
const CodeCancelled = 499

type socketJob struct {
	msg    ClientMessage
	ctx    context.Context
	cancel context.CancelFunc
}

// handleWebSocket upgrades the connection and serves relay requests on it
// until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	now := time.Now()
	client := &Client{
		ID:           uuid.NewString(),
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    clientKeyFromRequest(r),
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", client.ID).
		Str("ip", client.IPAddress).
		Msg("Client connected")

	s.serveClient(r.Context(), client)
}

func (s *Server) serveClient(ctx context.Context, client *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	jobs := make(chan socketJob, 1)
	go s.readClient(ctx, cancel, client, jobs)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			s.relayToClient(client, job)
		}
	}
}

// readClient reads requests until the connection fails. Cancel messages are
// handled here so they take effect while a relay is running.
func (s *Server) readClient(ctx context.Context, cancel context.CancelFunc, client *Client, jobs chan<- socketJob) {
	defer cancel()

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}
		s.clients.UpdateActivity(client.ID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(client, "", http.StatusBadRequest, "invalid message: "+err.Error())
			continue
		}

		switch msg.Type {
		case MessageCancel:
			if !client.stopRelay() {
				s.sendError(client, "", http.StatusConflict, "no relay is running")
			}
		case MessageRelay:
			jobCtx, jobCancel := context.WithCancel(ctx)
			if !client.beginRelay(jobCancel) {
				jobCancel()
				s.sendError(client, "", http.StatusConflict, "a relay is already running")
				continue
			}
			select {
			case jobs <- socketJob{msg: msg, ctx: jobCtx, cancel: jobCancel}:
			case <-ctx.Done():
				jobCancel()
				return
			}
		default:
			s.sendError(client, "", http.StatusBadRequest, "unknown message type: "+msg.Type)
		}
	}
}

// relayToClient runs one relay and pushes each event as JSON, then the
// result or an error.
func (s *Server) relayToClient(client *Client, job socketJob) {
	defer client.endRelay()
	defer job.cancel()

	rounds := DefaultRounds
	if job.msg.Rounds != nil {
		rounds = *job.msg.Rounds
	}
	if rounds < 0 {
		s.sendError(client, "", http.StatusBadRequest, relay.ErrInvalidRounds.Error())
		return
	}

	release, rejected := s.limiter.Acquire(client.IPAddress)
	if rejected != "" {
		observability.RecordRejected(string(rejected))
		status, msg := rejectionStatus(rejected)
		s.sendError(client, "", status, msg)
		return
	}
	defer release()

	roster, err := s.socketRoster(job.ctx, job.msg.Agents)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrConfiguration) || errors.Is(err, errInlineDisabled) {
			status = http.StatusBadRequest
		} else {
			s.logger.Error().Err(err).Msg("Failed to build roster")
		}
		s.sendError(client, "", status, "Failed to load agents: "+err.Error())
		return
	}

	res, err := s.engine.Run(job.ctx, roster, s.message(job.msg.Message), rounds, func(ev relay.Event) error {
		return client.WriteJSON(ServerMessage{Type: MessageEvent, RelayID: ev.RelayID, Event: &ev})
	})
	switch {
	case err == nil:
		_ = client.WriteJSON(ServerMessage{Type: MessageResult, RelayID: res.RelayID, Result: &res})
	case res.RelayID == "":
		status, msg := startError(err)
		s.sendError(client, "", status, msg)
	case errors.Is(err, context.Canceled):
		s.sendError(client, res.RelayID, CodeCancelled, "relay cancelled")
	default:
		s.logger.Warn().Err(err).Str("clientId", client.ID).Str("relay_id", res.RelayID).Msg("Socket relay stopped")
		s.sendError(client, res.RelayID, http.StatusInternalServerError, err.Error())
	}
}

var errInlineDisabled = errors.New("inline rosters are not enabled")

// socketRoster builds the viewer's roster when one was sent, otherwise the
// configured one.
func (s *Server) socketRoster(ctx context.Context, agents []config.AgentConfig) ([]*agent.Agent, error) {
	if len(agents) == 0 {
		return s.roster(ctx)
	}
	if s.inlineRoster == nil {
		return nil, errInlineDisabled
	}
	return s.inlineRoster(ctx, agents)
}

func (s *Server) sendError(client *Client, relayID string, code int, message string) {
	err := client.WriteJSON(ServerMessage{
		Type:    MessageError,
		RelayID: relayID,
		Error:   &ErrorBody{Code: code, Message: message},
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("clientId", client.ID).Msg("Failed to send error")
	}
}
