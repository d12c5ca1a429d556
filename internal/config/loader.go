package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigFile is used when no --config flag is given.
const DefaultConfigFile = "circle.yaml"

// EnvPrefix prefixes environment overrides, e.g. CIRCLE_SERVER_PORT.
const EnvPrefix = "CIRCLE"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// Load reads .env files, then the config file, then CIRCLE_* overrides, and
// validates the result. Every failure is an ErrConfiguration.
func (l *Loader) Load() (*Config, error) {
	configPath, err := filepath.Abs(l.GetConfigPath())
	if err != nil {
		return nil, configErrorf("resolve config path: %v", err)
	}
	baseDir := filepath.Dir(configPath)

	if err := loadDotEnv(".env", filepath.Join(baseDir, ".env")); err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, configErrorf("config file %s: %v", configPath, err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if ext := strings.TrimPrefix(filepath.Ext(configPath), "."); ext == "" {
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return nil, configErrorf("failed to read config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, configErrorf("failed to unmarshal config: %v", err)
	}
	cfg.BaseDir = baseDir

	applyProviderEnv(&cfg.Providers)

	if cfg.Logging.File != "" && !filepath.IsAbs(cfg.Logging.File) {
		cfg.Logging.File = filepath.Join(baseDir, cfg.Logging.File)
	}
	if cfg.Logging.AuditFile != "" && !filepath.IsAbs(cfg.Logging.AuditFile) {
		cfg.Logging.AuditFile = filepath.Join(baseDir, cfg.Logging.AuditFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the loader's path in the format its extension implies.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("agents", cfg.Agents)
	v.Set("relay", map[string]interface{}{
		"deadline":       cfg.Relay.Deadline.String(),
		"default_rounds": cfg.Relay.DefaultRounds,
		"seed_message":   cfg.Relay.SeedMessage,
		"buffer_size":    cfg.Relay.BufferSize,
		"emit_pending":   cfg.Relay.EmitPending,
	})
	v.Set("server", cfg.Server)
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)

	// Keys stay in the environment, never in the file.
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// loadDotEnv loads each existing file without overriding variables already set.
func loadDotEnv(paths ...string) error {
	seen := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if err := godotenv.Load(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return configErrorf("load %s: %v", abs, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("relay.deadline", cfg.Relay.Deadline)
	v.SetDefault("relay.default_rounds", cfg.Relay.DefaultRounds)
	v.SetDefault("relay.seed_message", cfg.Relay.SeedMessage)
	v.SetDefault("relay.buffer_size", cfg.Relay.BufferSize)
	v.SetDefault("relay.emit_pending", cfg.Relay.EmitPending)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.requests_per_minute", cfg.Server.RequestsPerMinute)
	v.SetDefault("server.burst", cfg.Server.Burst)
	v.SetDefault("server.max_concurrent_relays", cfg.Server.MaxConcurrentRelays)

	for _, p := range []string{"openai", "claude", "gemini", "deepseek"} {
		v.SetDefault("providers."+p+".api_key", "")
		v.SetDefault("providers."+p+".base_url", "")
	}
	v.SetDefault("providers.claude.max_tokens", 0)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
	v.SetDefault("tracing.exporter", cfg.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
}

// applyProviderEnv fills empty keys from each vendor's conventional variable.
func applyProviderEnv(p *ProvidersConfig) {
	fill := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&p.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&p.Claude.APIKey, "CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	fill(&p.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fill(&p.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
}
