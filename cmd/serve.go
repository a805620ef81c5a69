package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LiuAnBoy/591-rent-helper-server/internal/utils"
	"github.com/LiuAnBoy/591-rent-helper-server/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher daemon",
	Long: `Resyncs enabled subscriptions into the cache, then runs discovery
cycles for every active region on an adaptive day/night cadence until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		// The cache may be cold or stale; the durable store decides.
		if err := app.checker.SyncSubscriptions(ctx); err != nil {
			return err
		}

		sched := scheduler.New(scheduler.Config{
			DayInterval:   time.Duration(viper.GetInt("scheduler.day_interval_minutes")) * time.Minute,
			NightInterval: time.Duration(viper.GetInt("scheduler.night_interval_minutes")) * time.Minute,
			NightStart:    viper.GetInt("scheduler.night_start_hour"),
			NightEnd:      viper.GetInt("scheduler.night_end_hour"),
			RunOnStart:    true,
		}, app.checker, utils.Log)

		go sched.Start(ctx)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		s := <-sig
		utils.Log.Infof("received %s, shutting down", s)

		cancel()
		sched.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
