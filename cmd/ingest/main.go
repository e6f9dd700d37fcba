package main

import (
	"context"
	"os"
	"os/signal"

	"textbook-rag-be/internal/config"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg       *config.Config
	sysLogger logger.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the textbook and maintain the chat database",
	Long: `ingest reads the chapter markdown files, chunks and embeds them and
writes the vectors to the configured index. It also migrates the chat schema
and removes inactive conversations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfg == nil {
			cfg = config.Load()
		}
		if sysLogger == nil {
			sysLogger = logger.NewIsolatedLogger(cfg.App.LogFilePath)
		}
	},
}

func openDB() (*gorm.DB, error) {
	return database.NewGormDBFromDSN(cfg.Database.Connection, true)
}

// openOptionalDB only connects when the vector backend lives in Postgres.
func openOptionalDB() (*gorm.DB, error) {
	if cfg.Vector.Backend != "pgvector" {
		return nil, nil
	}
	return openDB()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("✗ %v", err)
		stop()
		os.Exit(1)
	}
}
