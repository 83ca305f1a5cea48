package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/policypipe/core/pipeline"
)

var (
	flagPolicyID      string
	flagChangeSummary string
)

var publishCmd = &cobra.Command{
	Use:   "publish <file.docx>",
	Short: "Convert a policy and store it as a new version",
	Long: `Publish converts a .docx policy to PDF, uploads the rendition to the blob
store, and records it as the policy's current version. Without --policy a
new policy is created from the document's metadata.

Examples:
  policypipe publish 8.01.01.docx --config policypipe.yaml
  policypipe publish 8.01.01.docx --policy <id> --summary "Clarified reporting window"`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&flagPolicyID, "policy", "", "Existing policy ID (default: create a new policy)")
	publishCmd.Flags().StringVar(&flagChangeSummary, "summary", "", "Change summary for this version")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	file := args[0]
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pub, err := a.pipeline.Publish(ctx, pipeline.PublishRequest{
		PolicyID:      flagPolicyID,
		FileName:      filepath.Base(file),
		Data:          data,
		ChangeSummary: flagChangeSummary,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ Published: %s v%d (%d pages)\n", pub.Policy.Title, pub.Version.VersionNumber, pub.PageCount)
	fmt.Fprintf(os.Stdout, "  policy:  %s\n", pub.Policy.ID)
	fmt.Fprintf(os.Stdout, "  version: %s\n", pub.Version.ID)
	fmt.Fprintf(os.Stdout, "  url:     %s\n", pub.SignedURL)
	return nil
}
