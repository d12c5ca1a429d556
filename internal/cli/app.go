package cli

import (
	"context"
	"fmt"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/internal/logger"
	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/relay"
)

// app is the state shared by commands that run relays.
type app struct {
	loader *config.Loader
	cfg    *config.Config
	log    *logger.Logger
}

// newApp loads the configuration, applies the --log-level override and
// creates the process logger.
func newApp() (*app, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &app{loader: loader, cfg: cfg, log: log}, nil
}

func (a *app) close() {
	_ = a.log.Close()
}

func (a *app) caller() *agent.Caller {
	return agent.NewCaller(agent.CallerConfig{
		Deadline: a.cfg.Relay.Deadline,
		Logger:   a.log.Component("agent"),
	})
}

func (a *app) engine() *relay.Engine {
	return relay.NewEngine(relay.Options{
		Logger:      a.log.Component("relay"),
		BufferSize:  a.cfg.Relay.BufferSize,
		EmitPending: a.cfg.Relay.EmitPending,
	})
}

// newBackendCreator is replaced in tests to run relays without network access.
var newBackendCreator = func(creds agent.Credentials) agent.BackendCreator {
	return agent.NewProviderFactory(creds)
}

// buildRoster creates fresh agents from cfg's roster.
func buildRoster(cfg *config.Config, caller *agent.Caller) ([]*agent.Agent, error) {
	defs, err := cfg.Definitions()
	if err != nil {
		return nil, err
	}
	return config.BuildRoster(defs, newBackendCreator(cfg.Credentials()), caller)
}

// rosterLoader re-reads the config file for every relay, so roster edits
// apply to the next relay without a restart.
func (a *app) rosterLoader() func(ctx context.Context) ([]*agent.Agent, error) {
	caller := a.caller()
	return func(ctx context.Context) ([]*agent.Agent, error) {
		cfg, err := a.loader.Load()
		if err != nil {
			return nil, err
		}
		return buildRoster(cfg, caller)
	}
}

// inlineRosterLoader builds rosters sent by viewers. Credentials, defaults and
// the seed directory still come from the config file.
func (a *app) inlineRosterLoader() func(ctx context.Context, agents []config.AgentConfig) ([]*agent.Agent, error) {
	caller := a.caller()
	return func(ctx context.Context, agents []config.AgentConfig) ([]*agent.Agent, error) {
		base, err := a.loader.Load()
		if err != nil {
			return nil, err
		}
		cfg, err := base.WithAgents(agents)
		if err != nil {
			return nil, err
		}
		return buildRoster(cfg, caller)
	}
}
