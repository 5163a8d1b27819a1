package pipeline

import (
	"context"

	"github.com/jackzampolin/leaflet/internal/extract"
	"github.com/jackzampolin/leaflet/internal/pdfread"
)

// DocumentSource is what the processor needs from a PDF: the extractor's
// page access plus the analyzer's per-page signals.
type DocumentSource interface {
	extract.PageSource
	Signals(pageNum int) (*pdfread.Signals, error)
}

// scannerSource adapts pdfread.Scanner to the DocumentSource interface.
type scannerSource struct {
	scanner *pdfread.Scanner
	dpi     int
}

func openScannerSource(path string, dpi int) (DocumentSource, error) {
	scanner, err := pdfread.Open(path)
	if err != nil {
		return nil, err
	}
	return &scannerSource{scanner: scanner, dpi: dpi}, nil
}

func (s *scannerSource) Path() string   { return s.scanner.Path() }
func (s *scannerSource) PageCount() int { return s.scanner.PageCount() }

func (s *scannerSource) PageSize(pageNum int) (float64, float64, error) {
	return s.scanner.PageSize(pageNum)
}

func (s *scannerSource) Signals(pageNum int) (*pdfread.Signals, error) {
	return s.scanner.Signals(pageNum)
}

func (s *scannerSource) TextBlocks(pageNum int) ([]pdfread.TextBlock, error) {
	return pdfread.TextBlocks(s.scanner.Path(), pageNum)
}

func (s *scannerSource) Capture(ctx context.Context, pageNum int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pdfread.CapturePage(s.scanner.Path(), pageNum, s.dpi)
}
