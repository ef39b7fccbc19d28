// Package cmd wires the CLI commands around the ingestion pipeline and the
// question answering service.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ragboletin",
	Short: "Normativa nacional scraper and question answering",
	Long: `ragboletin ingests the Boletín Oficial's legislation index into a
PostgreSQL warehouse with vector embeddings, and answers questions
grounded on the ingested normas.

Typical usage:

  ragboletin migrate     apply the database schema
  ragboletin backfill    ingest every missing weekday since the start date
  ragboletin schedule    keep ingesting every weekday morning
  ragboletin ask "..."   ask a question over the dataset`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
