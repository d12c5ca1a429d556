package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/agent/agenttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions(t *testing.T) {
	t.Run("should apply defaults and read seeds", func(t *testing.T) {
		cfg, err := Load(writeRoster(t, rosterYAML))
		require.NoError(t, err)

		defs, err := cfg.Definitions()
		require.NoError(t, err)
		require.Len(t, defs, 3)

		assert.Equal(t, agent.Definition{
			Name:         "Alice",
			SystemPrompt: "You argue for the seed.",
			SeedContent:  "alice seed",
			Model:        "gpt-4o-mini",
			Kind:         agent.KindOpenAI,
		}, defs[0])

		assert.Equal(t, agent.KindClaude, defs[1].Kind)
		assert.Equal(t, DefaultSystemPrompt, defs[1].SystemPrompt)
		assert.Equal(t, "shared seed", defs[1].SeedContent)

		assert.Equal(t, DefaultAgentName, defs[2].Name)
		assert.Equal(t, DefaultModel, defs[2].Model)
		assert.Equal(t, agent.KindGemini, defs[2].Kind)
	})

	t.Run("should fail on an unreadable seed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BaseDir = t.TempDir()
		cfg.Agents = []AgentConfig{{Name: "A", SeedFile: "nope.txt"}}

		_, err := cfg.Definitions()
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("should prefer inline seed content over the file", func(t *testing.T) {
		def, err := AgentConfig{Name: "A", SeedFile: "missing.txt", SeedContent: "typed in"}.Resolve(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "typed in", def.SeedContent)
		assert.Equal(t, DefaultModel, def.Model)
		assert.Equal(t, agent.KindOpenAI, def.Kind)
	})

	t.Run("should resolve absolute seed paths as given", func(t *testing.T) {
		dir := t.TempDir()
		seed := filepath.Join(dir, "abs.txt")
		writeFile(t, seed, "absolute")

		def, err := AgentConfig{Name: "A", SeedFile: seed}.Resolve("/somewhere/else")
		require.NoError(t, err)
		assert.Equal(t, "absolute", def.SeedContent)
	})
}

func TestBuildRoster(t *testing.T) {
	defs := []agent.Definition{
		{Name: "A", Model: "m1", Kind: agent.KindOpenAI, SeedContent: "s"},
		{Name: "B", Model: "m2", Kind: agent.KindOpenAI, SeedContent: "s"},
		{Name: "C", Model: "m3", Kind: agent.KindClaude, SeedContent: "s"},
	}

	t.Run("should build agents in roster order", func(t *testing.T) {
		factory := &agenttest.Factory{Backend: agenttest.NewEchoBackend("")}

		roster, err := BuildRoster(defs, factory, agent.NewCaller(agent.CallerConfig{}))
		require.NoError(t, err)
		require.Len(t, roster, 3)

		assert.Equal(t, "A", roster[0].Name())
		assert.Equal(t, "C", roster[2].Name())
		assert.Equal(t, agent.KindClaude, roster[2].Kind())
		assert.Equal(t, 1, roster[0].Len())

		// one backend per kind
		assert.Equal(t, []agent.BackendKind{agent.KindOpenAI, agent.KindClaude}, factory.Requests())
	})

	t.Run("should wrap factory failures", func(t *testing.T) {
		factory := &agenttest.Factory{Err: errors.New("no client")}

		_, err := BuildRoster(defs, factory, nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestWithAgents(t *testing.T) {
	base := DefaultConfig()
	base.BaseDir = t.TempDir()
	writeFile(t, filepath.Join(base.BaseDir, "seed.txt"), "shared seed")
	base.Agents = []AgentConfig{{Name: "FromFile"}}

	t.Run("should replace the roster without touching the original", func(t *testing.T) {
		cfg, err := base.WithAgents([]AgentConfig{
			{Name: "A", SeedContent: "inline"},
			{Name: "B"},
		})
		require.NoError(t, err)

		defs, err := cfg.Definitions()
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "inline", defs[0].SeedContent)
		assert.Equal(t, "shared seed", defs[1].SeedContent)

		assert.Equal(t, "FromFile", base.Agents[0].Name)
	})

	t.Run("should reject seed files outside the config directory", func(t *testing.T) {
		for _, p := range []string{"/etc/passwd", "../secret.txt"} {
			_, err := base.WithAgents([]AgentConfig{{Name: "A", SeedFile: p}})
			assert.ErrorIs(t, err, ErrConfiguration, p)
		}
	})

	t.Run("should keep the duplicate name check", func(t *testing.T) {
		cfg, err := base.WithAgents([]AgentConfig{
			{Name: "A", SeedContent: "x"},
			{Name: "A", SeedContent: "y"},
		})
		require.NoError(t, err)

		_, err = cfg.Definitions()
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}
