package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rolescout/internal/export"
	"github.com/sells-group/rolescout/internal/model"
)

var (
	exportOut   string
	exportTiers []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored roles to an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var tiers []model.Tier
		for _, raw := range exportTiers {
			tier, err := model.ParseTier(raw)
			if err != nil {
				return err
			}
			tiers = append(tiers, tier)
		}

		n, err := export.WriteWorkbook(ctx, st, export.Options{
			Path:  exportOut,
			Tiers: tiers,
		})
		if err != nil {
			return eris.Wrap(err, "export")
		}

		fmt.Printf("Exported %d roles to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "roles.xlsx", "output workbook path")
	exportCmd.Flags().StringSliceVar(&exportTiers, "tier", nil, "tiers to export (default all)")
	rootCmd.AddCommand(exportCmd)
}
