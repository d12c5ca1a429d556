package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured roster and relay settings",
	Long: `Load and validate the configuration and show the roster in relay order,
the relay defaults and which provider credentials are present.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	defs, err := cfg.Definitions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config: %s\n\n", loader.GetConfigPath())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tAGENT\tBACKEND\tMODEL\tSEED")
	for i, def := range defs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d bytes\n", i+1, def.Name, def.Kind, def.Model, len(def.SeedContent))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRounds: %d (%d turns)\n", cfg.Relay.DefaultRounds, (cfg.Relay.DefaultRounds+1)*len(defs))
	fmt.Fprintf(out, "Deadline: %s\n", cfg.Relay.Deadline)
	fmt.Fprintf(out, "Server: %s\n", cfg.Addr())

	creds := cfg.Credentials()
	keys := map[agent.BackendKind]string{
		agent.KindOpenAI:   creds.OpenAIKey,
		agent.KindClaude:   creds.ClaudeKey,
		agent.KindGemini:   creds.GeminiKey,
		agent.KindDeepSeek: creds.DeepSeekKey,
	}
	validator := config.NewValidator()
	fmt.Fprintln(out, "\nCredentials:")
	for _, kind := range agent.Kinds() {
		fmt.Fprintf(out, "  %s: %s\n", kind, credentialState(validator, kind, keys[kind]))
	}

	if len(defs) < 2 {
		fmt.Fprintf(out, "\nWarning: %d agent(s) configured, relays need at least two.\n", len(defs))
	}

	return nil
}

// credentialState describes a key without printing it. Format checks are
// advisory, so an odd key is still reported as set.
func credentialState(v *config.Validator, kind agent.BackendKind, key string) string {
	if key == "" {
		return "missing"
	}
	if err := v.ValidateAPIKey(key, kind); err != nil {
		return "set (unexpected format)"
	}
	return "set"
}
