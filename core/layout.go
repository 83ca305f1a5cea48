package core

// Layout is the physical page geometry, in millimetres. The document shell
// reserves the header and footer bands as blank margins and the decorator
// draws into exactly those bands, so both must share one Layout.
type Layout struct {
	PageWidthMM  float64 `yaml:"page_width_mm"`
	PageHeightMM float64 `yaml:"page_height_mm"`
	MarginMM     float64 `yaml:"margin_mm"`      // base margin on every side
	HeaderBandMM float64 `yaml:"header_band_mm"` // reserved for the header table
	HeaderGapMM  float64 `yaml:"header_gap_mm"`  // between header table and body
	FooterBandMM float64 `yaml:"footer_band_mm"` // reserved for rule + classification
}

// DefaultLayout is A4 portrait with a 180mm content width.
func DefaultLayout() Layout {
	return Layout{
		PageWidthMM:  210,
		PageHeightMM: 297,
		MarginMM:     15,
		HeaderBandMM: 28,
		HeaderGapMM:  4,
		FooterBandMM: 12,
	}
}

// ContentWidthMM is the printable body width.
func (l Layout) ContentWidthMM() float64 {
	return l.PageWidthMM - 2*l.MarginMM
}

// TopMarginMM is where the body starts: base margin + header band + gap.
func (l Layout) TopMarginMM() float64 {
	return l.MarginMM + l.HeaderBandMM + l.HeaderGapMM
}

// BottomMarginMM is base margin + footer band.
func (l Layout) BottomMarginMM() float64 {
	return l.MarginMM + l.FooterBandMM
}

// ContentHeightMM is the body height available on each page.
func (l Layout) ContentHeightMM() float64 {
	return l.PageHeightMM - l.TopMarginMM() - l.BottomMarginMM()
}

// MMToCSSPx converts millimetres to CSS pixels (96 per inch).
func MMToCSSPx(mm float64) float64 {
	return mm * 96 / 25.4
}
