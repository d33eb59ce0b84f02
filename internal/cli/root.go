// Package cli defines the arbengine command tree.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"arb-engine/internal/config"
	"arb-engine/internal/logging"
)

var (
	cfgFile string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arbengine",
	Short: "DEX arbitrage detection and execution engine",
	Long: `arbengine polls decentralized exchange quotes on a fixed cadence,
ranks venue-pair and triangular arbitrage opportunities against a
slippage-aware profit model, resolves swap and bridge routes, and
submits at most one deduplicated trade attempt per opportunity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = logging.NewLogger(cfg.Logging).With().
			Str("app", cfg.App.Name).
			Str("env", cfg.App.Environment).
			Logger()
		return nil
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default ./config.yaml)")
}
