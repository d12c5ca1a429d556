package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/briansrls/the-circle/pkg/agent"
)

// ErrConfiguration marks a roster or settings problem that prevents a relay
// from starting.
var ErrConfiguration = errors.New("configuration error")

// configErrorf wraps a message as an ErrConfiguration.
func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Roster defaults applied to agent entries that leave a field out.
const (
	DefaultAgentName    = "Unnamed"
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultSeedFile     = "seed.txt"
	DefaultModel        = "gpt-3.5-turbo"
)

// DefaultSeedMessage opens batch relays when no message is given.
const DefaultSeedMessage = "Let's look at the seed data and prompts you've been given.  Tell the others to do the same.  Thanks!"

// DefaultWebMessage opens relays started from the web views.
const DefaultWebMessage = "Hello everyone!"

// Config represents the circle configuration file
type Config struct {
	Agents    []AgentConfig   `json:"agents" mapstructure:"agents" yaml:"agents"`
	Relay     RelayConfig     `json:"relay" mapstructure:"relay" yaml:"relay"`
	Server    ServerConfig    `json:"server" mapstructure:"server" yaml:"server"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers" yaml:"providers"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig   `json:"tracing" mapstructure:"tracing" yaml:"tracing"`

	// BaseDir is the directory relative seed paths resolve against. The
	// loader sets it to the config file's directory.
	BaseDir string `json:"-" mapstructure:"-" yaml:"-"`
}

// AgentConfig is one roster entry as written in the config file.
type AgentConfig struct {
	Name         string `json:"name" mapstructure:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt" yaml:"system_prompt"`
	SeedFile     string `json:"seed_file" mapstructure:"seed_file" yaml:"seed_file"`
	SeedContent  string `json:"seed_content,omitempty" mapstructure:"seed_content" yaml:"seed_content,omitempty"`
	Model        string `json:"model" mapstructure:"model" yaml:"model"`
	AIType       string `json:"ai_type" mapstructure:"ai_type" yaml:"ai_type"`
}

// RelayConfig holds relay engine settings
type RelayConfig struct {
	Deadline      time.Duration `json:"deadline" mapstructure:"deadline" yaml:"deadline"`
	DefaultRounds int           `json:"default_rounds" mapstructure:"default_rounds" yaml:"default_rounds"`
	SeedMessage   string        `json:"seed_message" mapstructure:"seed_message" yaml:"seed_message"`
	BufferSize    int           `json:"buffer_size" mapstructure:"buffer_size" yaml:"buffer_size"`
	EmitPending   bool          `json:"emit_pending" mapstructure:"emit_pending" yaml:"emit_pending"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host                string `json:"host" mapstructure:"host" yaml:"host"`
	Port                int    `json:"port" mapstructure:"port" yaml:"port"`
	RequestsPerMinute   int    `json:"requests_per_minute" mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst               int    `json:"burst" mapstructure:"burst" yaml:"burst"`
	MaxConcurrentRelays int    `json:"max_concurrent_relays" mapstructure:"max_concurrent_relays" yaml:"max_concurrent_relays"`
}

// ProvidersConfig holds credentials per backend kind
type ProvidersConfig struct {
	OpenAI   ProviderConfig `json:"openai" mapstructure:"openai" yaml:"openai"`
	Claude   ProviderConfig `json:"claude" mapstructure:"claude" yaml:"claude"`
	Gemini   ProviderConfig `json:"gemini" mapstructure:"gemini" yaml:"gemini"`
	DeepSeek ProviderConfig `json:"deepseek" mapstructure:"deepseek" yaml:"deepseek"`
}

// ProviderConfig holds one backend's credentials
type ProviderConfig struct {
	APIKey    string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" yaml:"level"`
	File      string `json:"file" mapstructure:"file" yaml:"file"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file" yaml:"audit_file"`
	Console   bool   `json:"console" mapstructure:"console" yaml:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction" yaml:"redaction"`
}

// TracingConfig holds OpenTelemetry settings. Exporter is "none", "stdout"
// or "otlp"; with "none" spans are sampled but never leave the process, so
// only their trace ids show up in logs and the audit file. Endpoint is the
// OTLP gRPC collector address.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio" yaml:"sample_ratio"`
	Exporter    string  `json:"exporter" mapstructure:"exporter" yaml:"exporter"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			Deadline:      agent.DefaultDeadline,
			DefaultRounds: 3,
			SeedMessage:   DefaultSeedMessage,
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                5000,
			RequestsPerMinute:   30,
			Burst:               5,
			MaxConcurrentRelays: 4,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			ServiceName: "the-circle",
			SampleRatio: 1,
			Exporter:    "none",
			Endpoint:    "localhost:4317",
		},
	}
}

// Credentials converts provider settings for the backend factory.
func (c *Config) Credentials() agent.Credentials {
	return agent.Credentials{
		OpenAIKey:       c.Providers.OpenAI.APIKey,
		OpenAIBaseURL:   c.Providers.OpenAI.BaseURL,
		ClaudeKey:       c.Providers.Claude.APIKey,
		ClaudeMaxTokens: c.Providers.Claude.MaxTokens,
		GeminiKey:       c.Providers.Gemini.APIKey,
		DeepSeekKey:     c.Providers.DeepSeek.APIKey,
		DeepSeekBaseURL: c.Providers.DeepSeek.BaseURL,
	}
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// String returns a JSON representation of the config with keys masked.
func (c *Config) String() string {
	masked := *c
	masked.Providers = ProvidersConfig{
		OpenAI:   maskProvider(c.Providers.OpenAI),
		Claude:   maskProvider(c.Providers.Claude),
		Gemini:   maskProvider(c.Providers.Gemini),
		DeepSeek: maskProvider(c.Providers.DeepSeek),
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func maskProvider(p ProviderConfig) ProviderConfig {
	if p.APIKey != "" {
		p.APIKey = "****"
	}
	return p
}

// Validate checks the settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return nil
}
