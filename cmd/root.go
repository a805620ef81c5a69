package cmd

import (
	"fmt"
	"os"

	"github.com/LiuAnBoy/591-rent-helper-server/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	                _              _       _
	 _ __ ___ _ __ | |___      ____ _| |_ ___| |__
	| '__/ _ \ '_ \| __\ \ /\ / / _` + "`" + ` | __/ __| '_ \
	| | |  __/ | | | |_ \ V  V / (_| | || (__| | | |
	|_|  \___|_| |_|\__| \_/\_/ \__,_|\__\___|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rentwatch",
	Short: "A rental listing watcher with subscription matching.",
	Long: LOGO + `rentwatch polls an upstream rental listing site, deduplicates new
listings, enriches them with detail-page data, and notifies you the moment
a listing matches one of your subscription filters.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rentwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("dbpath", "", "", "SQLite database path (default is $HOME/.config/rentwatch/rentwatch.sqlite)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".rentwatch")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.rentwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default values for all keys
	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.admin_chat", "")
	viper.SetDefault("fetch.timeout_seconds", 30)
	viper.SetDefault("fetch.max_items", 30)
	viper.SetDefault("fetch.headless", true)
	viper.SetDefault("fetch.max_workers", 4)
	viper.SetDefault("scheduler.day_interval_minutes", 15)
	viper.SetDefault("scheduler.night_interval_minutes", 120)
	viper.SetDefault("scheduler.night_start_hour", 1)
	viper.SetDefault("scheduler.night_end_hour", 8)

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
