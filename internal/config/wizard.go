package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/briansrls/the-circle/pkg/agent"
)

// Wizard builds a roster interactively
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and prompting on out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for agents until a blank name is entered, then for relay
// settings. At least two agents are required.
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== The Circle: roster setup ===")
	fmt.Fprintln(w.out, "Add agents in speaking order. Leave the name empty to finish.")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	for {
		fmt.Fprintf(w.out, "Agent %d name: ", len(cfg.Agents)+1)
		name, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if name == "" {
			if len(cfg.Agents) >= 2 {
				break
			}
			fmt.Fprintln(w.out, "Error: at least two agents are required")
			continue
		}

		entry := AgentConfig{Name: name}

		for {
			fmt.Fprintf(w.out, "  Backend (%s) [OPENAI]: ", kindList())
			aiType, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if err := validator.ValidateAIType(aiType); err != nil {
				fmt.Fprintf(w.out, "  Error: %v\n", err)
				continue
			}
			kind, _ := agent.ParseBackendKind(aiType)
			entry.AIType = string(kind)
			break
		}

		if entry.Model, err = w.ask("  Model", DefaultModel); err != nil {
			return nil, err
		}
		if entry.SystemPrompt, err = w.ask("  System prompt", DefaultSystemPrompt); err != nil {
			return nil, err
		}
		if entry.SeedFile, err = w.ask("  Seed file", DefaultSeedFile); err != nil {
			return nil, err
		}

		cfg.Agents = append(cfg.Agents, entry)
		fmt.Fprintln(w.out)
	}

	for {
		answer, err := w.ask("Default rounds", strconv.Itoa(cfg.Relay.DefaultRounds))
		if err != nil {
			return nil, err
		}
		rounds, err := strconv.Atoi(answer)
		if err == nil {
			err = validator.ValidateRounds(rounds)
		}
		if err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Relay.DefaultRounds = rounds
		break
	}

	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Roster complete. API keys are read from the environment or a .env file.")

	return cfg, nil
}

func (w *Wizard) ask(prompt, def string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func kindList() string {
	kinds := agent.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "/")
}
