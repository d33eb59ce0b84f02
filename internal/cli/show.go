package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"arb-engine/internal/app"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent execution attempts from the audit store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cfg, app.ModeScan, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		audit := a.Audit()
		if audit == nil {
			return fmt.Errorf("audit store disabled: set database.dsn to use show")
		}

		records, err := audit.RecentAttempts(cmd.Context(), showLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no attempts recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tPAIR\tPATH\tSTATE\tAMOUNT\tPROFIT\tBLOCK\tREASON")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				rec.CreatedAt.Format("01-02 15:04:05"),
				rec.Pair, rec.VenuePath, rec.State,
				rec.AmountIn.String(), rec.ExpectedProfit.String(),
				rec.TargetBlock, rec.Reason)
		}
		return w.Flush()
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "maximum attempts to display")
	rootCmd.AddCommand(showCmd)
}
