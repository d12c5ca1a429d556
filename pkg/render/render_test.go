package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/stretchr/testify/assert"
)

func TestColor(t *testing.T) {
	t.Run("should be white for the seed author", func(t *testing.T) {
		assert.Equal(t, UserColor, Color(relay.SeedAuthor))
	})

	t.Run("should be a stable pastel", func(t *testing.T) {
		c := Color("Alice")
		assert.Equal(t, c, Color("Alice"))
		assert.Regexp(t, `^#[0-9a-f]{6}$`, c)

		// md5("Alice") starts 64 48 9c: each channel is pulled 70% toward white
		assert.Equal(t, "#d0c8e1", c)
	})

	t.Run("should differ between names", func(t *testing.T) {
		assert.NotEqual(t, Color("Alice"), Color("Bob"))
	})
}

func TestMarkdown(t *testing.T) {
	assert.Equal(t, "<p><strong>bold</strong> move</p>", Markdown("**bold** move"))
	assert.NotContains(t, Markdown("<script>alert(1)</script>"), "<script>")
}

func TestRecordRow(t *testing.T) {
	rec := relay.TurnRecord{
		Agent:   "Alice",
		Source:  "OPENAI",
		Model:   "gpt-4o-mini",
		Round:   2,
		Text:    "hi there",
		Status:  agent.StatusSuccess,
		Latency: 1234 * time.Millisecond,
		Tokens:  2,
		Cost:    0.0002,
	}

	t.Run("should format metrics", func(t *testing.T) {
		row := RecordRow(rec, false)
		assert.Equal(t, "2", row.Tokens)
		assert.Equal(t, "0.0002", row.Cost)
		assert.Equal(t, "Round 2", row.Round)
		assert.Equal(t, "1.23", row.ResponseTime)
	})

	t.Run("should leave metrics blank while pending", func(t *testing.T) {
		row := RecordRow(rec, true)
		assert.Empty(t, row.Tokens)
		assert.Empty(t, row.Cost)
		assert.Equal(t, "--", row.ResponseTime)
	})

	t.Run("should escape cells", func(t *testing.T) {
		out := Row{Agent: "<b>", Message: "x"}.HTML()
		assert.Contains(t, out, "<strong>&lt;b&gt;</strong>")
	})
}

func TestEventHTML(t *testing.T) {
	seed := &relay.TurnRecord{Agent: relay.SeedAuthor, Source: relay.SeedAuthor, Model: relay.SeedModel, Text: "Hello everyone!"}

	out := EventHTML(relay.Event{Type: relay.EventSeed, Turn: seed})
	assert.Contains(t, out, "background-color:#ffffff;")
	assert.Contains(t, out, "<p>Hello everyone!</p>")
	assert.Contains(t, out, "style.display='none'")

	turn := &relay.TurnRecord{Agent: "Bob", Source: "CLAUDE", Model: "m", Text: "reply", Round: 1}
	assert.Contains(t, EventHTML(relay.Event{Type: relay.EventTurn, Turn: turn}), "Round 1")

	assert.Empty(t, EventHTML(relay.Event{Type: relay.EventRoundComplete, Context: "x"}))
	assert.Equal(t, Footer(), EventHTML(relay.Event{Type: relay.EventComplete}))

	for _, col := range []string{"Agent", "Source", "Model", "Message", "Tokens", "Cost ($)", "Round", "Response Time"} {
		assert.Contains(t, Preamble(), ">"+col+"</th>")
	}
}

func TestIndex(t *testing.T) {
	page := Index(1, `Hello "everyone"!`)
	assert.Contains(t, page, `value="1"`)
	assert.Contains(t, page, "Hello &#34;everyone&#34;!")
	assert.Contains(t, page, `new EventSource("/stream?rounds="`)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	events := []relay.Event{
		{Type: relay.EventSeed, Turn: &relay.TurnRecord{Agent: relay.SeedAuthor, Text: "hello"}},
		{Type: relay.EventTurn, Turn: &relay.TurnRecord{Agent: "A", Index: 0, Round: 0, Input: "hello", Text: "hello!", Status: agent.StatusSuccess}},
		{Type: relay.EventTurn, Turn: &relay.TurnRecord{Agent: "B", Index: 1, Round: 0, Input: "hello!", Text: agent.SentinelTimeout, Status: agent.StatusTimeout, Latency: 20 * time.Second}},
		{Type: relay.EventRoundComplete, Round: 0, Context: "hello!\nRequest timed out"},
		{Type: relay.EventComplete, Context: "hello!\nRequest timed out"},
	}
	for _, ev := range events {
		assert.NoError(t, c.Handle(ev))
	}

	out := buf.String()
	for _, want := range []string{
		"--- STARTING TELEPHONE CHAIN ---",
		"Initial message: hello",
		"--- ROUND 0 ---",
		"A receives: hello\nA sends: hello!\n",
		"B receives: hello!\nB sends: Request timed out\n  (timeout after 20.00s)\n",
		"End of round 0. Message will cycle back to A.",
		"--- TELEPHONE CHAIN COMPLETE ---",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "--- ROUND"))
}
