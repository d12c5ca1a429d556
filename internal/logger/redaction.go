package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credentials before log lines reach a writer.
type Redactor struct {
	rules []rule
}

// rule replaces every match of re with repl, which may refer to groups.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// NewRedactor creates a redactor covering the credential formats of every
// supported backend.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []rule{
			// Anthropic first, the generic sk- form would leave its prefix behind.
			{re: regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), repl: redacted},
			// OpenAI and DeepSeek
			{re: regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), repl: redacted},
			// Google AI Studio
			{re: regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), repl: redacted},
			{re: regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), repl: redacted},
			// Only the value goes, so JSON lines stay parseable.
			{re: regexp.MustCompile(`(?i)(api[_-]?key"?\s*[:=]\s*"?)[^\s",}]+`), repl: "${1}" + redacted},
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

// Redact masks every pattern match in s.
func (r *Redactor) Redact(s string) string {
	for _, rl := range r.rules {
		s = rl.re.ReplaceAllString(s, rl.repl)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers do not treat the length change
// as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
