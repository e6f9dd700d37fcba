package main

import (
	"fmt"
	"strings"
	"time"

	"textbook-rag-be/internal/bootstrap"
	"textbook-rag-be/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	indexDir      string
	indexRecreate bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk, embed and upload every chapter",
	Long: `Reads chapter-N*.md files (and intro.md as chapter 0) from --dir,
splits them into passages, embeds them and upserts them into the vector index.
Use --recreate to drop the collection first.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "docs directory (defaults to DOCS_DIR)")
	indexCmd.Flags().BoolVar(&indexRecreate, "recreate", false, "drop and recreate the collection before upserting")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir := indexDir
	if dir == "" {
		dir = cfg.Rag.DocsDir
	}

	out := cmd.OutOrStdout()
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(out, "=== Textbook Content Indexing ===")

	db, err := openOptionalDB()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	ingestion, _, err := bootstrap.NewIngestionService(cfg, db, sysLogger)
	if err != nil {
		return err
	}

	files, err := service.FindChapterFiles(dir)
	if err != nil {
		return err
	}
	color.New(color.FgYellow).Fprintf(out, "Found %d chapter files in %s\n", len(files), dir)

	report, err := ingestion.Run(cmd.Context(), dir, service.IngestOptions{
		Recreate: indexRecreate,
		OnProgress: func(done, total int) {
			fmt.Fprintf(out, "  embedded %d/%d chunks\n", done, total)
		},
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	chapters := make([]string, len(report.Chapters))
	for i, n := range report.Chapters {
		chapters[i] = fmt.Sprint(n)
	}

	success := color.New(color.FgGreen, color.Bold)
	success.Fprintln(out, "=== Indexing Complete ===")
	fmt.Fprintf(out, "Indexed %d chunks in %s\n", report.Chunks, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Chapters: %s\n", strings.Join(chapters, ", "))
	return nil
}
