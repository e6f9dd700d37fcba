package main

import (
	"fmt"

	"textbook-rag-be/internal/bootstrap"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the vector collection status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openOptionalDB()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}

		embedder, err := bootstrap.NewEmbeddingProvider(cfg)
		if err != nil {
			return err
		}
		index, err := bootstrap.NewVectorIndex(cfg, db, embedder.Dimension())
		if err != nil {
			return err
		}

		info, err := index.Info(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		color.New(color.FgCyan, color.Bold).Fprintf(out, "Collection %s (%s)\n", info.Name, cfg.Vector.Backend)
		fmt.Fprintf(out, "  status:    %s\n", info.Status)
		fmt.Fprintf(out, "  points:    %d\n", info.PointsCount)
		fmt.Fprintf(out, "  dimension: %d\n", info.Dimension)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
