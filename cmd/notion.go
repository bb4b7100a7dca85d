package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rolescout/internal/notify"
)

var notionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Sync qualified roles to the Notion database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
			return eris.New("notion token and database id are required (ROLESCOUT_NOTION_TOKEN, ROLESCOUT_NOTION_DATABASE_ID)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		client := notify.NewClient(cfg.Notion.Token)
		stats, err := notify.NewSyncer(st, client, cfg.Notion.DatabaseID).Sync(ctx)
		if err != nil {
			return eris.Wrap(err, "notion sync")
		}

		fmt.Printf("Synced %d roles: %d created, %d updated, %d failed\n",
			stats.Total, stats.Created, stats.Updated, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notionCmd)
}
