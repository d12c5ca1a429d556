// Package render turns relay events into HTML fragments for the web views
// and plain-text lines for the console.
package render

import (
	"crypto/md5"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/briansrls/the-circle/pkg/relay"
)

// PastelFactor blends a hashed color toward white.
const PastelFactor = 0.7

// UserColor is the row color of the seed message.
const UserColor = "#ffffff"

const header = `<html>
<head>
  <link rel="preconnect" href="https://fonts.gstatic.com" />
  <link href="https://fonts.googleapis.com/css?family=Open+Sans:400,600" rel="stylesheet" />
  <style>
    body { font-family: 'Open Sans', sans-serif; color: #333; background: #fafafa; max-width: 800px; margin: 0 auto; padding: 16px; }
    h1 { text-align: center; }
    table { width: 100%; border-collapse: collapse; margin: 16px 0; }
    th, td { border: 1px solid #ccc; padding: 8px; vertical-align: top; }
    th { background: #f5f5f5; }
    .back-link { display: inline-block; margin-top: 12px; text-decoration: none; color: #337ab7; }
    .back-link:hover { text-decoration: underline; }
    #loader { border: 8px solid #f3f3f3; border-top: 8px solid #337ab7; border-radius: 50%; width: 40px; height: 40px;
              animation: spin 1s linear infinite; margin: 20px auto; }
    @keyframes spin { 0% { transform: rotate(0deg); } 100% { transform: rotate(360deg); } }
  </style>
</head>
<body>
<h1>Telephone Conversation</h1>
<table id="conv-table">
  <tr>
    <th style="width:15%;">Agent</th>
    <th style="width:15%;">Source</th>
    <th style="width:15%;">Model</th>
    <th>Message</th>
    <th style="width:10%;">Tokens</th>
    <th style="width:10%;">Cost ($)</th>
    <th style="width:10%;">Round</th>
    <th style="width:10%;">Response Time</th>
  </tr>
`

const loader = `<div id="loader"></div>
`

const hideLoader = `<script>document.getElementById('loader').style.display='none';</script>
`

const footer = `</table>
<a href="/" class="back-link">Go back</a>
</body>
</html>
`

// Preamble is the page head, table header and loading spinner, sent before
// the relay produces anything.
func Preamble() string {
	return header + loader
}

// Footer closes the table and the page.
func Footer() string {
	return footer
}

// Row is one rendered table row. Message is Markdown; every other field is
// escaped text.
type Row struct {
	Agent        string
	Source       string
	Model        string
	Message      string
	Tokens       string
	Cost         string
	Round        string
	ResponseTime string
}

// HTML renders the row.
func (r Row) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<tr style=\"background-color:%s;\">\n", Color(r.Agent))
	fmt.Fprintf(&b, "  <td><strong>%s</strong></td>\n", html.EscapeString(r.Agent))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.Source))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.Model))
	fmt.Fprintf(&b, "  <td>%s</td>\n", Markdown(r.Message))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.Tokens))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.Cost))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.Round))
	fmt.Fprintf(&b, "  <td>%s</td>\n", html.EscapeString(r.ResponseTime))
	b.WriteString("</tr>\n")
	return b.String()
}

// Color derives a pastel row color from an agent name. The seed author is
// always white.
func Color(name string) string {
	if name == relay.SeedAuthor {
		return UserColor
	}
	sum := md5.Sum([]byte(name))
	pastel := func(c byte) int {
		return int(float64(c) + float64(255-int(c))*PastelFactor)
	}
	return fmt.Sprintf("#%02x%02x%02x", pastel(sum[0]), pastel(sum[1]), pastel(sum[2]))
}

// RoundLabel formats a round index for display.
func RoundLabel(round int) string {
	return "Round " + strconv.Itoa(round)
}

// FormatCost prints a cost without trailing zeros.
func FormatCost(cost float64) string {
	return strconv.FormatFloat(cost, 'f', -1, 64)
}

// RecordRow converts a turn record. Pending records show "--" as their
// response time and no token or cost figures.
func RecordRow(rec relay.TurnRecord, pending bool) Row {
	row := Row{
		Agent:   rec.Agent,
		Source:  rec.Source,
		Model:   rec.Model,
		Message: rec.Text,
		Round:   RoundLabel(rec.Round),
	}
	if pending {
		row.ResponseTime = "--"
		return row
	}
	row.Tokens = strconv.Itoa(rec.Tokens)
	row.Cost = FormatCost(rec.Cost)
	row.ResponseTime = fmt.Sprintf("%.2f", rec.Latency.Seconds())
	return row
}

// EventHTML renders the fragment an event contributes to the page. Round
// boundaries contribute nothing.
func EventHTML(ev relay.Event) string {
	switch ev.Type {
	case relay.EventSeed:
		if ev.Turn == nil {
			return hideLoader
		}
		seed := Row{
			Agent:   ev.Turn.Agent,
			Source:  ev.Turn.Source,
			Model:   ev.Turn.Model,
			Message: ev.Turn.Text,
		}
		return seed.HTML() + hideLoader
	case relay.EventPending:
		if ev.Turn == nil {
			return ""
		}
		return RecordRow(*ev.Turn, true).HTML()
	case relay.EventTurn:
		if ev.Turn == nil {
			return ""
		}
		return RecordRow(*ev.Turn, false).HTML()
	case relay.EventComplete:
		return footer
	default:
		return ""
	}
}

// ErrorPage renders a short error document for failures before a relay starts.
func ErrorPage(message string) string {
	return fmt.Sprintf("<html><body><p>%s</p><a href=\"/\">Go back</a></body></html>\n", html.EscapeString(message))
}
