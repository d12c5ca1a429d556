package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey checks the key format each vendor issues. It is advisory:
// proxies and self-hosted endpoints may use other formats.
func (v *Validator) ValidateAPIKey(key string, kind agent.BackendKind) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", kind)
	}

	switch kind {
	case agent.KindClaude:
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case agent.KindOpenAI, agent.KindDeepSeek:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid %s API key format (should start with sk-)", kind)
		}
	case agent.KindGemini:
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateAIType validates a roster backend kind. Empty means OPENAI.
func (v *Validator) ValidateAIType(aiType string) error {
	_, err := agent.ParseBackendKind(aiType)
	return err
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateDeadline validates the per-call deadline
func (v *Validator) ValidateDeadline(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("relay deadline must be positive, got %s", d)
	}
	return nil
}

// ValidateRounds validates a round count
func (v *Validator) ValidateRounds(rounds int) error {
	if rounds < 0 {
		return fmt.Errorf("rounds must be >= 0, got %d", rounds)
	}
	return nil
}

// ValidateTraceExporter validates tracing.exporter
func (v *Validator) ValidateTraceExporter(exporter string) error {
	switch exporter {
	case "", "none", "stdout", "otlp":
		return nil
	}
	return fmt.Errorf("invalid trace exporter: %s (must be one of: none, stdout, otlp)", exporter)
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateDeadline(cfg.Relay.Deadline); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateRounds(cfg.Relay.DefaultRounds); err != nil {
		errors = append(errors, fmt.Errorf("relay.default_rounds: %w", err))
	}
	if cfg.Relay.BufferSize < 0 {
		errors = append(errors, fmt.Errorf("relay.buffer_size must be >= 0"))
	}

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, err)
	}
	if cfg.Server.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.requests_per_minute must be >= 0"))
	}
	if cfg.Server.Burst < 0 {
		errors = append(errors, fmt.Errorf("server.burst must be >= 0"))
	}
	if cfg.Server.MaxConcurrentRelays < 0 {
		errors = append(errors, fmt.Errorf("server.max_concurrent_relays must be >= 0"))
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}
	if err := v.ValidateTraceExporter(cfg.Tracing.Exporter); err != nil {
		errors = append(errors, err)
	}
	if cfg.Tracing.Exporter == "otlp" && cfg.Tracing.Endpoint == "" {
		errors = append(errors, fmt.Errorf("tracing.endpoint is required for the otlp exporter"))
	}

	names := make(map[string]int, len(cfg.Agents))
	for i, a := range cfg.Agents {
		if err := v.ValidateAIType(a.AIType); err != nil {
			errors = append(errors, fmt.Errorf("agent %d (%s): %w", i, a.Name, err))
		}

		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = DefaultAgentName
		}
		if prev, ok := names[name]; ok {
			errors = append(errors, fmt.Errorf("agent %d: name %q already used by agent %d", i, name, prev))
		} else {
			names[name] = i
		}
	}

	return errors
}
