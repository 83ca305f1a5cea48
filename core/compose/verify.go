package compose

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFConfig is the pdfcpu configuration used for reading composed and
// downloaded PDFs: relaxed validation, no on-disk config directory.
func PDFConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ReadPDF parses and validates a PDF held in memory.
func ReadPDF(data []byte) (*model.Context, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("reading pdf: %w", errEmptyInput)
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), PDFConfig())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// PDFPageCount re-reads a PDF and returns its page count.
func PDFPageCount(data []byte) (int, error) {
	ctx, err := ReadPDF(data)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}
