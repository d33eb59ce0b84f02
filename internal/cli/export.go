package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arb-engine/internal/app"
	"arb-engine/internal/export"
)

var (
	exportOutput    string
	exportFormat    string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the profit history as a chart or CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cfg, app.ModeScan, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		audit := a.Audit()
		if audit == nil {
			return fmt.Errorf("audit store disabled: set database.dsn to use export")
		}

		maxPoints := cfg.ResolveMaxPoints(exportMaxPoints)
		points, err := audit.ProfitHistory(cmd.Context(), maxPoints)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			return fmt.Errorf("no profit history to export")
		}
		points = export.Downsample(points, maxPoints)

		out, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		switch strings.ToLower(exportFormat) {
		case "png":
			if err := export.RenderProfitPNG(points, "expected profit per cycle", out); err != nil {
				return err
			}
		case "csv":
			if err := export.WriteCSV(points, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown export format %q, want png or csv", exportFormat)
		}

		logger.Info().
			Str("output", exportOutput).
			Str("format", exportFormat).
			Int("points", len(points)).
			Msg("export complete")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "profit.png", "output file path")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "png", "output format: png or csv")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "maximum data points (default from config)")
	rootCmd.AddCommand(exportCmd)
}
