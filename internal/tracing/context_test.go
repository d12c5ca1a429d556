package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithRelayID(t *testing.T) {
	ctx := WithRelayID(context.Background(), "relay-1")

	if got := GetRelayID(ctx); got != "relay-1" {
		t.Errorf("Expected relay ID relay-1, got %s", got)
	}
}

func TestEmptyContext(t *testing.T) {
	tc := FromContext(context.Background())

	if tc.TraceID != "" || tc.RelayID != "" || tc.Agent != "" || tc.RequestID != "" {
		t.Errorf("Expected empty trace context, got %+v", tc)
	}
}

func TestNewRelayContext(t *testing.T) {
	ctx, relayID := NewRelayContext(context.Background())

	if relayID == "" {
		t.Fatal("NewRelayContext returned empty relay ID")
	}
	if GetRelayID(ctx) != relayID {
		t.Errorf("Expected relay ID %s in context", relayID)
	}
	if GetTraceID(ctx) == "" {
		t.Error("Expected a trace ID to be generated")
	}

	parent := WithTraceID(context.Background(), "trace-keep")
	ctx, _ = NewRelayContext(parent)
	if GetTraceID(ctx) != "trace-keep" {
		t.Errorf("Expected existing trace ID to be kept, got %s", GetTraceID(ctx))
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithAgent(WithRelayID(context.Background(), "relay-9"), "Alice")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("turn")

	out := buf.String()
	for _, want := range []string{`"relay_id":"relay-9"`, `"agent":"Alice"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
}
