package main

import (
	"errors"
	"fmt"

	"textbook-rag-be/pkg/events"
	pktNats "textbook-rag-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	requestDir      string
	requestRecreate bool
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask a running server to reindex through NATS",
	Long: `request publishes an INGEST_REQUESTED event. The server consumes it and
runs the indexing job in the background. --dir is relative to the server's DOCS_DIR.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Messaging.NatsURL == "" {
			return errors.New("NATS_URL is not set")
		}

		publisher, err := pktNats.NewPublisher(cfg.Messaging.NatsURL, sysLogger)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer publisher.Close()

		event := events.NewIngestRequested(requestDir, requestRecreate)
		if err := publisher.Publish(cmd.Context(), event); err != nil {
			return err
		}

		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Published %s on %s\n",
			event.EventType(), pktNats.Subject(event.EventType()))
		return nil
	},
}

func init() {
	requestCmd.Flags().StringVar(&requestDir, "dir", "", "chapter directory below DOCS_DIR (default DOCS_DIR)")
	requestCmd.Flags().BoolVar(&requestRecreate, "recreate", false, "drop the collection before indexing")
	rootCmd.AddCommand(requestCmd)
}
