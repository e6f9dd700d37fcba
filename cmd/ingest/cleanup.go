package main

import (
	"fmt"
	"time"

	"textbook-rag-be/internal/repository/cache"
	"textbook-rag-be/internal/repository/unitofwork"
	"textbook-rag-be/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete conversations with no activity for --days days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		db, err := openDB()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}

		conversations := service.NewConversationService(
			unitofwork.NewRepositoryFactory(db),
			cache.NewMemoryHistoryCache(time.Minute),
			sysLogger,
		)

		deleted, err := conversations.CleanupInactive(cmd.Context(), time.Duration(cleanupDays)*24*time.Hour)
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Removed %d inactive conversations (older than %d days)\n", deleted, cleanupDays)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 7, "inactivity window in days")
	rootCmd.AddCommand(cleanupCmd)
}
