// Package cmd implements the CLI commands for policypipe using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "policypipe",
	Short: "policypipe: turn Word policy documents into branded, versioned PDFs",
	Long: `policypipe converts .docx policy documents into paginated PDFs with a
vector header and footer, publishes them as numbered policy versions,
compares versions page by page, and assembles standalone documents.

Usage:
  policypipe convert <file.docx|dir> [flags]
  policypipe publish <file.docx> [flags]
  policypipe compare <old.pdf> <new.pdf> [flags]
  policypipe assemble <intake|brief> --data <file.json> [flags]
  policypipe edit <import|append-row> <file.html> [flags]
  policypipe serve --config <file.yaml>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (default: built-in defaults)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
