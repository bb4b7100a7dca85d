package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestTrigger string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over the source feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Run(ctx, ingestTrigger)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		zap.L().Info("ingest complete",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Int("roles_found", run.RolesFound),
			zap.Int("qualified", run.QualifiedRoles),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTrigger, "trigger", "manual", "trigger source recorded on the run (manual, cron, api)")
	rootCmd.AddCommand(ingestCmd)
}
