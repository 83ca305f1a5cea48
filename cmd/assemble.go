package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/policypipe/core/assemble"
	"github.com/gaurav-prasanna/policypipe/core/export"
	"github.com/gaurav-prasanna/policypipe/core/output"
)

var (
	flagData string
	flagDOCX bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble <intake|brief>",
	Short: "Fill a document template from JSON data",
	Long: `Assemble fills the project intake form or the case brief template and
writes a standalone HTML document, or a Word document with --docx.

Examples:
  policypipe assemble intake --data intake.json
  policypipe assemble brief --data brief.json --docx --output_dir ./out`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"intake", "brief"},
	RunE:      runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)
	assembleCmd.Flags().StringVar(&flagData, "data", "", "JSON file with the template data (required)")
	assembleCmd.Flags().BoolVar(&flagDOCX, "docx", false, "Write a .docx instead of HTML")
	assembleCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
	assembleCmd.MarkFlagRequired("data")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(flagData)
	if err != nil {
		return fmt.Errorf("reading %s: %w", flagData, err)
	}

	var title, html string
	switch args[0] {
	case "intake":
		var data assemble.IntakeData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing %s: %w", flagData, err)
		}
		title = assemble.IntakeTitle
		html, err = assemble.IntakeForm(data)
	case "brief":
		var data assemble.BriefData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing %s: %w", flagData, err)
		}
		title = data.Title
		html, err = assemble.Brief(data)
	default:
		return fmt.Errorf("unknown template %q (use intake or brief)", args[0])
	}
	if err != nil {
		return err
	}

	writer, err := output.New(flagOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}

	var path string
	if flagDOCX {
		data, name, err := export.DOCX(title, html, export.DOCXOptions{Creator: "policypipe"})
		if err != nil {
			return err
		}
		path, err = writer.WriteNamed(output.Stem(name), data, ".docx")
		if err != nil {
			return err
		}
	} else {
		path, err = writer.WriteNamed(output.Stem(output.DOCXFilename(title)), []byte(html), ".html")
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	return nil
}
