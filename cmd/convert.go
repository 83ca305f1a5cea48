// The convert command runs documents through the pipeline:
// docx → metadata + normalize → render → write.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/output"
	"github.com/gaurav-prasanna/policypipe/core/pipeline"
	"github.com/gaurav-prasanna/policypipe/core/render"
	"github.com/gaurav-prasanna/policypipe/discover"
)

// Flag variables.
var (
	flagOnly      bool
	flagAll       bool
	flagPDF       bool
	flagMarkdown  bool
	flagJSON      bool
	flagPreview   bool
	flagOutputDir string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.docx|dir>...",
	Short: "Convert policy documents to the specified output format",
	Long: `Convert reads a .docx policy, extracts its SECTION / NUMBER / SUBJECT
metadata, normalizes the body, and writes it in the specified output format
(PDF, Markdown, JSON outline, or preview HTML).

Examples:
  policypipe convert 8.01.01.docx --pdf
  policypipe convert 8.01.01.docx --markdown --output_dir ./out
  policypipe convert ./policies --all --pdf
  policypipe convert 8.01.01.docx --preview`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	// Mode flags.
	convertCmd.Flags().BoolVar(&flagOnly, "only", false, "Convert only the given files (default)")
	convertCmd.Flags().BoolVar(&flagAll, "all", false, "Convert every .docx under the given directories")

	// Output format flags (mutually exclusive).
	convertCmd.Flags().BoolVar(&flagPDF, "pdf", false, "Output PDF")
	convertCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Output Markdown")
	convertCmd.Flags().BoolVar(&flagJSON, "json", false, "Output structured JSON outline")
	convertCmd.Flags().BoolVar(&flagPreview, "preview", false, "Output preview HTML")

	// Output directory.
	convertCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	// --- Validate flags ---
	if err := validateFlags(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, err := selectFormat()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	writer, err := output.New(flagOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if flagAll {
		return runAll(ctx, args, a.pipeline, format, writer)
	}
	return runOnly(ctx, args, a.pipeline, format, writer)
}

// runOnly converts the named files, each named after its metadata.
func runOnly(
	ctx context.Context,
	files []string,
	p *pipeline.Pipeline,
	format outputFormat,
	writer *output.Writer,
) error {
	var firstErr error
	for _, file := range files {
		data, meta, err := processFile(ctx, file, p, format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ Error: %s: %v\n", file, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		path, err := writer.WriteNamed(output.PDFName(meta, file), data, format.extension())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	}
	return firstErr
}

// runAll discovers every policy document under the given roots and
// processes each through the pipeline, mirroring the source tree.
func runAll(
	ctx context.Context,
	roots []string,
	p *pipeline.Pipeline,
	format outputFormat,
	writer *output.Writer,
) error {
	fmt.Fprintf(os.Stdout, "Discovering documents under %v...\n", roots)

	files, err := discover.DiscoverAll(ctx, roots, discover.Options{Recursive: true})
	if err != nil {
		return fmt.Errorf("discovering documents: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Found %d documents to process\n", len(files))

	var errCount int
	for i, file := range files {
		fmt.Fprintf(os.Stdout, "[%d/%d] Processing %s\n", i+1, len(files), file)

		data, _, err := processFile(ctx, file, p, format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Error: %v\n", err)
			errCount++
			continue
		}

		path, err := writer.WriteMirrored(rootOf(file, roots), file, data, format.extension())
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ Write error: %v\n", err)
			errCount++
			continue
		}
		fmt.Fprintf(os.Stdout, "  ✓ Written: %s\n", path)
	}

	if errCount > 0 {
		fmt.Fprintf(os.Stderr, "\n%d/%d documents failed\n", errCount, len(files))
	}
	return nil
}

// rootOf returns the discovery root a file was found under.
func rootOf(file string, roots []string) string {
	for _, root := range roots {
		abs := discover.NormalizePath(root)
		if rel, err := filepath.Rel(abs, file); err == nil && !strings.HasPrefix(rel, "..") {
			return abs
		}
	}
	return filepath.Dir(file)
}

// processFile runs a single document through the pipeline. PDF and
// preview output come from the pipeline's own composition; the other
// formats render the prepared document.
func processFile(
	ctx context.Context,
	file string,
	p *pipeline.Pipeline,
	format outputFormat,
) ([]byte, core.Metadata, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, core.Metadata{}, fmt.Errorf("read: %w", err)
	}

	switch format {
	case formatPDF:
		res, err := p.Convert(ctx, file, data)
		if err != nil {
			return nil, core.Metadata{}, err
		}
		return res.PDF, res.Document.Meta, nil
	case formatPreview:
		html, prep, err := p.Preview(ctx, file, data)
		if err != nil {
			return nil, core.Metadata{}, err
		}
		return []byte(html), prep.Document.Meta, nil
	}

	renderer := format.renderer()
	if renderer == nil {
		return nil, core.Metadata{}, fmt.Errorf("no renderer for %s output", format)
	}
	prep, err := p.Prepare(ctx, file, data)
	if err != nil {
		return nil, core.Metadata{}, err
	}
	out, err := renderer.Render(ctx, prep.Document)
	if err != nil {
		return nil, core.Metadata{}, fmt.Errorf("render: %w", err)
	}
	return out, prep.Document.Meta, nil
}

// validateFlags checks that exactly one output format is chosen and
// that --only and --all are not both specified.
func validateFlags() error {
	// Check mutually exclusive mode flags.
	if flagOnly && flagAll {
		return fmt.Errorf("--only and --all are mutually exclusive")
	}

	// Count output formats.
	formatCount := 0
	for _, f := range []bool{flagPDF, flagMarkdown, flagJSON, flagPreview} {
		if f {
			formatCount++
		}
	}

	if formatCount == 0 {
		return fmt.Errorf("exactly one output format is required: --pdf, --markdown, --json, or --preview")
	}
	if formatCount > 1 {
		return fmt.Errorf("only one output format allowed per run (got %d)", formatCount)
	}
	return nil
}

// outputFormat is the rendition a convert run produces.
type outputFormat int

const (
	formatPDF outputFormat = iota
	formatMarkdown
	formatJSON
	formatPreview
)

func (f outputFormat) String() string {
	switch f {
	case formatPDF:
		return "pdf"
	case formatMarkdown:
		return "markdown"
	case formatJSON:
		return "json"
	case formatPreview:
		return "preview"
	default:
		return "unknown"
	}
}

func (f outputFormat) extension() string {
	switch f {
	case formatPDF:
		return ".pdf"
	case formatMarkdown:
		return ".md"
	case formatJSON:
		return ".json"
	default:
		return ".html"
	}
}

// renderer returns the standalone renderer for formats that need no
// composition, or nil for pdf and preview.
func (f outputFormat) renderer() core.Renderer {
	switch f {
	case formatMarkdown:
		return render.NewMarkdownRenderer()
	case formatJSON:
		return render.NewJSONRenderer()
	default:
		return nil
	}
}

// selectFormat maps the format flags to an outputFormat.
func selectFormat() (outputFormat, error) {
	switch {
	case flagPDF:
		return formatPDF, nil
	case flagMarkdown:
		return formatMarkdown, nil
	case flagJSON:
		return formatJSON, nil
	case flagPreview:
		return formatPreview, nil
	default:
		return 0, fmt.Errorf("no output format selected")
	}
}
