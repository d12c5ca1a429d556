package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/agent/agenttest"
	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)

// echoRoster returns a loader that builds fresh echo agents on every call.
func echoRoster(names ...string) RosterLoader {
	return func(context.Context) ([]*agent.Agent, error) {
		roster := make([]*agent.Agent, 0, len(names))
		for _, name := range names {
			a, err := agent.New(agent.Config{
				Definition: agent.Definition{
					Name:         name,
					SystemPrompt: "You are a helpful assistant.",
					Model:        "stub-model",
				},
				Backend: agenttest.NewEchoBackend("!"),
				Caller:  agent.NewCaller(agent.CallerConfig{Deadline: time.Second, Logger: testLogger}),
			})
			if err != nil {
				return nil, err
			}
			roster = append(roster, a)
		}
		return roster, nil
	}
}

func newTestServer(t *testing.T, roster RosterLoader, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Port:   5000,
		Engine: relay.NewEngine(relay.Options{Logger: testLogger}),
		Roster: roster,
		Logger: testLogger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	engine := relay.NewEngine(relay.Options{})

	t.Run("should reject an invalid port", func(t *testing.T) {
		_, err := NewServer(Config{Port: 0, Engine: engine, Roster: echoRoster("A", "B")})
		assert.Error(t, err)
	})

	t.Run("should require an engine and a roster loader", func(t *testing.T) {
		_, err := NewServer(Config{Port: 5000, Roster: echoRoster("A", "B")})
		assert.Error(t, err)

		_, err = NewServer(Config{Port: 5000, Engine: engine})
		assert.Error(t, err)
	})

	t.Run("should join host and port", func(t *testing.T) {
		s, err := NewServer(Config{Host: "127.0.0.1", Port: 8080, Engine: engine, Roster: echoRoster("A", "B")})
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8080", s.Addr())
	})
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, echoRoster("A", "B"))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Hello everyone!")
	assert.Contains(t, rec.Body.String(), "/stream?rounds=")
}

func TestHandleHealth(t *testing.T) {
	health := func(t *testing.T, url string) HealthStatus {
		t.Helper()
		resp, err := http.Get(url + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	t.Run("should report an idle server", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, 0, body.ActiveRelays)
		assert.Empty(t, body.Clients)
	})

	t.Run("should list connected socket clients", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))
		ts := httptest.NewServer(s.Handler())
		defer ts.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return health(t, ts.URL).SocketClients == 1
		}, 2*time.Second, 20*time.Millisecond)

		body := health(t, ts.URL)
		require.Len(t, body.Clients, 1)
		assert.NotEmpty(t, body.Clients[0].ID)
		assert.False(t, body.Clients[0].Relaying)
		assert.False(t, body.Clients[0].Idle)

		conn.Close()
		require.Eventually(t, func() bool {
			return len(health(t, ts.URL).Clients) == 0
		}, 2*time.Second, 20*time.Millisecond)
	})
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t, echoRoster("A", "B"))

	serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds=0", nil))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "circle_turns_total")
}

func TestHandleStream(t *testing.T) {
	t.Run("should stream every event as SSE", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds=0&message=hi", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "event: preamble\n"))
		assert.Equal(t, 1, strings.Count(body, "event: seed\n"))
		assert.Equal(t, 2, strings.Count(body, "event: turn\n"))
		assert.Equal(t, 1, strings.Count(body, "event: complete\n"))
		assert.Equal(t, 5, strings.Count(body, ": heartbeat\n\n"))
		assert.Contains(t, body, "<p>hi!!</p>")
		assert.NotContains(t, body, "event: round_complete")
	})

	t.Run("should split multi-line fragments into data lines", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds=0", nil))

		for _, line := range strings.Split(rec.Body.String(), "\n") {
			if line == "" {
				continue
			}
			assert.Regexp(t, `^(event: |id: |data: |: heartbeat)`, line)
		}
	})

	t.Run("should default to one round", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream", nil))

		assert.Equal(t, 4, strings.Count(rec.Body.String(), "event: turn\n"))
		assert.Contains(t, rec.Body.String(), "Hello everyone!")
	})

	t.Run("should reject a roster of one", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), InsufficientAgentsMessage)
	})

	t.Run("should reject bad rounds", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		for _, q := range []string{"abc", "-1"} {
			rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds="+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("should report roster failures", func(t *testing.T) {
		s := newTestServer(t, func(context.Context) ([]*agent.Agent, error) {
			return nil, errors.New("config unreadable")
		})

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/stream", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "config unreadable")
	})

	t.Run("should rate limit per client", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"), func(c *Config) {
			c.RequestsPerMinute = 1
			c.Burst = 1
		})

		first := serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds=0", nil))
		second := serve(s, httptest.NewRequest(http.MethodGet, "/stream?rounds=0", nil))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})
}

func TestHandleRun(t *testing.T) {
	post := func(form url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("should stream a complete page", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, post(url.Values{"rounds": {"0"}, "message": {"hi"}}))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<h1>Telephone Conversation</h1>")
		assert.Contains(t, body, "<p>hi</p>")
		assert.Contains(t, body, "<p>hi!</p>")
		assert.Contains(t, body, "<p>hi!!</p>")
		assert.True(t, strings.HasSuffix(body, "</html>\n"))
		assert.True(t, rec.Flushed)
	})

	t.Run("should reject a roster of one", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A"))

		rec := serve(s, post(url.Values{}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, InsufficientAgentsMessage+"\n", rec.Body.String())
	})

	t.Run("should not accept GET", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/run", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestListenAndServe(t *testing.T) {
	s := newTestServer(t, echoRoster("A", "B"), func(c *Config) {
		c.Host = "127.0.0.1"
		c.Port = 45873
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get("http://" + s.Addr() + "/healthz")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStop(t *testing.T) {
	t.Run("should end ListenAndServe without cancelling its context", func(t *testing.T) {
		s := newTestServer(t, echoRoster("A", "B"), func(c *Config) {
			c.Host = "127.0.0.1"
			c.Port = 45874
		})

		done := make(chan error, 1)
		go func() { done <- s.ListenAndServe(context.Background()) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + s.Addr() + "/healthz")
			if err != nil {
				return false
			}
			resp.Body.Close()
			return true
		}, 2*time.Second, 20*time.Millisecond)

		require.NoError(t, s.Stop())
		require.NoError(t, s.Stop())

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("should return listen errors", func(t *testing.T) {
		first := newTestServer(t, echoRoster("A", "B"), func(c *Config) {
			c.Host = "127.0.0.1"
			c.Port = 45875
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = first.ListenAndServe(ctx) }()
		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + first.Addr() + "/healthz")
			if err != nil {
				return false
			}
			resp.Body.Close()
			return true
		}, 2*time.Second, 20*time.Millisecond)

		second := newTestServer(t, echoRoster("A", "B"), func(c *Config) {
			c.Host = "127.0.0.1"
			c.Port = 45875
		})
		err := second.ListenAndServe(context.Background())
		assert.Error(t, err)
	})
}
