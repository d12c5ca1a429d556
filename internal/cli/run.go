package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/pkg/render"
	"github.com/spf13/cobra"
)

var (
	runRounds  int
	runMessage string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one relay and print it",
	Long: `Run one relay over the configured roster and print each hand-off.
The message goes around the circle once, then once more per round, and the
final aggregate is printed at the end.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runRounds, "rounds", "r", -1, "rounds after the first pass (default from relay.default_rounds)")
	runCmd.Flags().StringVarP(&runMessage, "message", "m", "", "seed message (default from relay.seed_message)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rounds := a.cfg.Relay.DefaultRounds
	if cmd.Flags().Changed("rounds") {
		if err := config.NewValidator().ValidateRounds(runRounds); err != nil {
			return err
		}
		rounds = runRounds
	}
	message := a.cfg.Relay.SeedMessage
	if runMessage != "" {
		message = runMessage
	}

	roster, err := buildRoster(a.cfg, a.caller())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	console := render.NewConsole(out)

	res, err := a.engine().Run(ctx, roster, message, rounds, console.Handle)
	if err != nil {
		return fmt.Errorf("relay failed: %w", err)
	}

	fmt.Fprintf(out, "Final message after telephone chain: %s\n", res.Final)
	log := a.log.Component("cli")
	log.Info().
		Str("relay_id", res.RelayID).
		Int("turns", res.Turns).
		Int("tokens", res.Tokens).
		Float64("cost", res.Cost).
		Dur("duration", res.Duration).
		Msg("Relay complete")

	return nil
}
