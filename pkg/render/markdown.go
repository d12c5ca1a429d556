package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in replies is not passed through; goldmark omits it unless the
// unsafe renderer option is set.
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders a model reply to HTML. If conversion fails the text is
// escaped and shown as-is.
func Markdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}
