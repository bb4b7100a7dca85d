package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var requalifyCmd = &cobra.Command{
	Use:   "requalify",
	Short: "Re-run qualification and scoring over stored roles",
	Long:  "Re-evaluates every stored role against the current rule tables without fetching from the feed. Cached enrichment verdicts are honored; no new assessor calls are made.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Pipeline.RequalifyAll(ctx)
		if err != nil {
			return eris.Wrap(err, "requalify")
		}

		fmt.Printf("Requalified %d roles: %d tier changes, %d errors\n",
			stats.Total, stats.TierChanged, stats.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requalifyCmd)
}
