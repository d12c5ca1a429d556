package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/internal/observability"
	"github.com/briansrls/the-circle/internal/tracing"
	"github.com/briansrls/the-circle/pkg/gateway"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve relays over HTTP",
	Long: `Start the HTTP server. The index page runs relays in the browser over
Server-Sent Events; /run streams a plain HTML page, /ws pushes JSON events,
and /metrics exposes Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	log := a.log.Component("serve")
	cfg := a.cfg

	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		if err := config.NewValidator().ValidatePort(servePort); err != nil {
			return err
		}
		cfg.Server.Port = servePort
	}

	observability.EnsureRegistered()
	if cfg.Tracing.Enabled {
		err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			log.Info().
				Float64("sample_ratio", cfg.Tracing.SampleRatio).
				Str("exporter", cfg.Tracing.Exporter).
				Msg("Tracing initialized successfully")
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown tracing")
				}
			}()
		}
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize audit logger, audit disabled")
		} else {
			log.Info().Str("path", cfg.Logging.AuditFile).Msg("Audit logger initialized")
			defer func() {
				if err := observability.GetAuditLogger().Close(); err != nil {
					log.Error().Err(err).Msg("Failed to close audit logger")
				}
			}()
		}
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:                cfg.Server.Host,
		Port:                cfg.Server.Port,
		Engine:              a.engine(),
		Roster:              a.rosterLoader(),
		InlineRoster:        a.inlineRosterLoader(),
		DefaultMessage:      config.DefaultWebMessage,
		RequestsPerMinute:   cfg.Server.RequestsPerMinute,
		Burst:               cfg.Server.Burst,
		MaxConcurrentRelays: cfg.Server.MaxConcurrentRelays,
		Logger:              a.log.Component("gateway"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving relays on http://%s\n", server.Addr())
	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	log.Info().Msg("Relay server exited")
	return nil
}
