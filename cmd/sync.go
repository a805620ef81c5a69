package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Resync enabled subscriptions into the cache",
	Long: `Loads every enabled subscription from the durable store and mirrors
it wholesale into the cache, grouped by region. Use after editing
subscriptions outside the daemon, or to repair a wiped cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.checker.SyncSubscriptions(ctx)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
