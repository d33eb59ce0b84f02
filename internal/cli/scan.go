package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arb-engine/internal/app"
	"arb-engine/internal/service"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection cycle without executing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cfg, app.ModeScan, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		return printReport(report, scanJSON)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one full cycle against a dry-run submitter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cfg, app.ModeSimulate, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if err := printReport(report, scanJSON); err != nil {
			return err
		}
		for _, attempt := range a.Attempts() {
			fmt.Printf("attempt %s  state=%s  target_block=%d\n", attempt.ID, attempt.State, attempt.TargetBlock)
		}
		return nil
	},
}

func printReport(report service.CycleReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("cycle:        %s\n", report.Cycle.Format("2006-01-02 15:04:05"))
	fmt.Printf("block:        %d\n", report.BlockNumber)
	fmt.Printf("quotes:       %d (%d outages)\n", report.QuoteCount, report.OutageCount)

	if report.Opportunity == nil {
		fmt.Println("opportunity:  none")
		return nil
	}
	opp := report.Opportunity
	fmt.Printf("opportunity:  %s %s\n", opp.Kind, opp.Pair.String())
	fmt.Printf("path:         %s\n", opp.VenuePath())
	fmt.Printf("profit:       %s\n", opp.ExpectedProfit.String())

	if report.Decision != nil {
		fmt.Printf("swap venue:   %s\n", report.Decision.SwapVenue)
		if report.Decision.Bridge != nil {
			fmt.Printf("bridge:       %s\n", report.Decision.Bridge.Name)
		}
		fmt.Printf("amount in:    %s\n", report.Decision.AmountIn.String())
	}
	return nil
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the report as JSON")
	simulateCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(simulateCmd)
}
