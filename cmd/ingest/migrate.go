package main

import (
	"fmt"

	"textbook-rag-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the conversations and messages tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}

		if err := database.AutoMigrate(db); err != nil {
			return err
		}

		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✓ Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
