package main

import (
	"os"

	"github.com/spf13/cobra"

	"journey/api/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "journey",
	Short: "Four-day gift journey service",
	Long: `journey serves a four-day gift journey: one greeting card unlocks per day, and a signed-in
operator can edit the greetings and decide which days are unlocked.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, operatorCmd, stateCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
