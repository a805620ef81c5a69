package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LiuAnBoy/591-rent-helper-server/internal/utils"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one discovery cycle now",
	Long: `Runs a single discovery cycle outside the scheduler. With --region
it checks that region; otherwise it checks every region that has mirrored
subscriptions. Prints the region's recent run history afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetInt("region")

		ctx := context.Background()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.checker.SyncSubscriptions(ctx); err != nil {
			return err
		}

		if region > 0 {
			if _, err := app.checker.Check(ctx, region); err != nil {
				utils.Log.Errorf("check failed: %v", err)
			}
			return printRuns(ctx, app, region)
		}
		return app.checker.CheckActiveRegions(ctx)
	},
}

func printRuns(ctx context.Context, app *app, region int) error {
	runs, err := app.db.LatestRuns(ctx, region, 10)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tFETCHED\tNEW\tNOTIFIED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.FetchedCount, r.NewCount, r.NotifiedCount, r.Error)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntP("region", "r", 0, "Region id to check (0 = all active regions)")
}
