package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Kiosk is a sharded Discord moderation and utility bot",
	Long: `Kiosk runs one gateway session per configured shard over a shared
state cache and a persisted deferred-task scheduler, backed by SQLite or
Postgres.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.json")
	rootCmd.AddCommand(runCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}
