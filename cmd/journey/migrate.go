package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the sqlite or postgres driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, driver, err := openSQL(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Printf("%s %s schema is up to date\n", color.New(color.FgGreen).Sprint("✓"), driver)
		return nil
	},
}
