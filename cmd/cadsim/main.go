package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/cadhub/internal/cadsim"
	"github.com/okian/cadhub/pkg/logger"
)

// Default configuration constants.
const (
	defaultURL     = "ws://localhost:5001/ws"
	defaultTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg      cadsim.Config
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "cadsim",
		Short: "Simulate a CAD client against a running hub",
		Long: `cadsim connects to the hub's push channel as a CAD client, registers a
box schema (width, depth, height), and answers every parameter update with
a solved box mesh. Use it for local end-to-end runs without a CAD host.`,
		Example: `  cadsim
  cadsim --url ws://hub.local:5001/ws --solve-delay 500ms`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			if err := logger.SetLevelString(logLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", defaultURL, "push channel URL of the hub")
	cmd.Flags().StringVar(&cfg.Material, "material", "default", "material tag for the generated mesh")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "dial timeout")
	cmd.Flags().DurationVar(&cfg.SolveDelay, "solve-delay", 0, "pause before answering each update")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func run(ctx context.Context, cfg cadsim.Config) error {
	log := logger.Get().Named("cadsim")
	sim, err := cadsim.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "connected", logger.String("url", cfg.URL))

	err = sim.Run(ctx)
	stats := sim.Stats()
	log.Info(context.Background(), "simulator stopped",
		logger.Int("updates_applied", stats.UpdatesApplied),
		logger.Int("geometry_sent", stats.GeometrySent),
		logger.Int("acks", stats.Acks))
	return err
}
