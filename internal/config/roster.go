package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/briansrls/the-circle/pkg/agent"
)

// Resolve applies roster defaults to one entry, parses its backend kind and
// reads its seed file. Inline seed content wins over the file. baseDir
// anchors relative seed paths.
func (a AgentConfig) Resolve(baseDir string) (agent.Definition, error) {
	def := agent.Definition{
		Name:         strings.TrimSpace(a.Name),
		SystemPrompt: a.SystemPrompt,
		Model:        strings.TrimSpace(a.Model),
	}
	if def.Name == "" {
		def.Name = DefaultAgentName
	}
	if def.SystemPrompt == "" {
		def.SystemPrompt = DefaultSystemPrompt
	}
	if def.Model == "" {
		def.Model = DefaultModel
	}

	kind, err := agent.ParseBackendKind(a.AIType)
	if err != nil {
		return agent.Definition{}, configErrorf("agent %s: %v", def.Name, err)
	}
	def.Kind = kind

	if a.SeedContent != "" {
		def.SeedContent = a.SeedContent
		return def, nil
	}

	seedFile := a.SeedFile
	if seedFile == "" {
		seedFile = DefaultSeedFile
	}
	seed, err := LoadSeed(resolvePath(baseDir, seedFile))
	if err != nil {
		return agent.Definition{}, configErrorf("agent %s: %v", def.Name, err)
	}
	def.SeedContent = seed

	return def, nil
}

// WithAgents returns a copy of c running agents instead of the file roster.
// Entries come from viewers, so seed files must stay inside BaseDir.
func (c *Config) WithAgents(agents []AgentConfig) (*Config, error) {
	for _, a := range agents {
		if a.SeedContent != "" || a.SeedFile == "" {
			continue
		}
		if !filepath.IsLocal(a.SeedFile) {
			return nil, configErrorf("agent %s: seed file %q is outside the config directory", a.Name, a.SeedFile)
		}
	}

	out := *c
	out.Agents = append([]AgentConfig(nil), agents...)
	return &out, nil
}

// Definitions resolves every roster entry in order. Seed files are read on
// every call, so edits take effect on the next relay.
func (c *Config) Definitions() ([]agent.Definition, error) {
	defs := make([]agent.Definition, 0, len(c.Agents))
	seen := make(map[string]bool, len(c.Agents))

	for _, entry := range c.Agents {
		def, err := entry.Resolve(c.BaseDir)
		if err != nil {
			return nil, err
		}
		if seen[def.Name] {
			return nil, configErrorf("duplicate agent name %q", def.Name)
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}

	return defs, nil
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read seed file: %w", err)
	}
	return string(data), nil
}

// BuildRoster creates fresh agents for one relay. Each backend kind is
// created once and shared by the agents of that kind.
func BuildRoster(defs []agent.Definition, creator agent.BackendCreator, caller *agent.Caller) ([]*agent.Agent, error) {
	backends := make(map[agent.BackendKind]agent.Backend)
	roster := make([]*agent.Agent, 0, len(defs))

	for _, def := range defs {
		backend, ok := backends[def.Kind]
		if !ok {
			b, err := creator.NewBackend(def.Kind)
			if err != nil {
				return nil, configErrorf("agent %s: %v", def.Name, err)
			}
			backends[def.Kind] = b
			backend = b
		}

		a, err := agent.New(agent.Config{
			Definition: def,
			Backend:    backend,
			Caller:     caller,
		})
		if err != nil {
			return nil, configErrorf("%v", err)
		}
		roster = append(roster, a)
	}

	return roster, nil
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
