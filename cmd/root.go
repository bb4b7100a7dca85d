package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rolescout",
	Short: "Role ingestion and qualification pipeline",
	Long:  "Ingests job postings from the source feed, qualifies and scores them, tracks changes across runs, and surfaces qualified roles via export, Notion, and a read-only API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
