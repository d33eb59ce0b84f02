package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arb-engine/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection and execution loop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg, app.ModeRun, logger)
		if err != nil {
			return err
		}

		logger.Info().
			Strs("pairs", cfg.Engine.Pairs).
			Int("venues", len(cfg.Venues)).
			Dur("interval", cfg.Scheduler.Interval).
			Bool("dry_run", cfg.Relay.DryRun).
			Msg("engine starting")

		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
