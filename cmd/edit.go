package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/policypipe/core/assemble"
	"github.com/gaurav-prasanna/policypipe/core/editor"
	"github.com/gaurav-prasanna/policypipe/core/output"
)

var (
	flagTitle string
	flagIndex int
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Work with saved editor documents",
}

var editImportCmd = &cobra.Command{
	Use:   "import <file.html>",
	Short: "Load a saved document and print its editable body and row anchors",
	Args:  cobra.ExactArgs(1),
	RunE:  runEditImport,
}

var editAppendRowCmd = &cobra.Command{
	Use:   "append-row <file.html>",
	Short: "Add a row to the table under a row anchor and save the document",
	Long: `Append-row loads a saved document, grows the table that follows the
heading at --index by one row, and writes the result as a new standalone
document.

Examples:
  policypipe edit append-row brief.html --index 0 --output_dir ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runEditAppendRow,
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.AddCommand(editImportCmd, editAppendRowCmd)

	editCmd.PersistentFlags().StringVar(&flagTitle, "title", "", "Document title (default: file name)")
	editAppendRowCmd.Flags().IntVar(&flagIndex, "index", 0, "Row anchor index")
	editAppendRowCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
}

func importFile(file string) (*editor.Editor, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	title := flagTitle
	if title == "" {
		title = output.Stem(file)
	}
	ed := editor.New(editor.Options{})
	if err := ed.Import(title, string(raw)); err != nil {
		ed.Close()
		return nil, err
	}
	ed.FlushAnchors()
	return ed, nil
}

func runEditImport(cmd *cobra.Command, args []string) error {
	ed, err := importFile(args[0])
	if err != nil {
		return err
	}
	defer ed.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"document": ed.Document(),
		"anchors":  ed.RowAnchors(),
	})
}

func runEditAppendRow(cmd *cobra.Command, args []string) error {
	ed, err := importFile(args[0])
	if err != nil {
		return err
	}
	defer ed.Close()

	if err := ed.AppendRow(flagIndex); err != nil {
		return err
	}
	doc := ed.Document()
	html, err := assemble.Standalone(doc.TitleText, doc.BodyHTML)
	if err != nil {
		return err
	}

	writer, err := output.New(flagOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}
	path, err := writer.WriteNamed(output.Stem(output.DOCXFilename(doc.TitleText)), []byte(html), ".html")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	return nil
}
