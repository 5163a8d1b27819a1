// Package pdfread reads per-page structural signals and native text
// content from PDF files. It is the local half of the extraction
// capabilities: cheap signals for classification, the text layer with
// coordinates for the fast path, and full-page raster captures for the
// OCR/captioning path.
package pdfread

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ImageDim is the intrinsic pixel size of a raster image on a page.
type ImageDim struct {
	Width  int
	Height int
}

// Signals are the cheap structural measurements for one page.
type Signals struct {
	PageNumber       int
	Width            float64 // media box width in points
	Height           float64 // media box height in points
	NativeTextLength int
	Images           []ImageDim
	VectorItemCount  int
	TableCount       int
}

// Scanner reads signals and content from a single PDF document.
// Not safe for concurrent use of the pdfcpu context; TextBlocks and
// CapturePage only touch the file path and are safe to call from
// multiple goroutines.
type Scanner struct {
	path string
	ctx  *model.Context
	dims []pdftypes.Dim
}

// Open validates and indexes a PDF for scanning.
func Open(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	return &Scanner{path: path, ctx: ctx, dims: dims}, nil
}

// Path returns the source file path.
func (s *Scanner) Path() string {
	return s.path
}

// PageCount returns the number of pages in the document.
func (s *Scanner) PageCount() int {
	return s.ctx.PageCount
}

// PageSize returns the media box of a page in points. Page numbers are
// 1-indexed.
func (s *Scanner) PageSize(pageNum int) (width, height float64, err error) {
	if pageNum < 1 || pageNum > len(s.dims) {
		return 0, 0, fmt.Errorf("page %d out of range (1-%d)", pageNum, len(s.dims))
	}
	d := s.dims[pageNum-1]
	return d.Width, d.Height, nil
}

// Signals computes the structural measurements for one page.
func (s *Scanner) Signals(pageNum int) (*Signals, error) {
	w, h, err := s.PageSize(pageNum)
	if err != nil {
		return nil, err
	}

	sig := &Signals{
		PageNumber: pageNum,
		Width:      w,
		Height:     h,
		Images:     s.pageImages(pageNum),
	}

	content, err := s.pageContent(pageNum)
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", pageNum, err)
	}

	ops := countOperators(content)
	sig.NativeTextLength = ops.textChars
	sig.VectorItemCount = ops.vectorItems
	sig.TableCount = estimateTables(ops.horizontalRules, ops.verticalRules)

	return sig, nil
}

// pageImages returns intrinsic dimensions of the raster image XObjects
// referenced by a page.
func (s *Scanner) pageImages(pageNum int) []ImageDim {
	var dims []ImageDim
	for _, objNr := range pdfcpu.ImageObjNrs(s.ctx, pageNum) {
		entry, ok := s.ctx.Table[objNr]
		if !ok || entry == nil || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(pdftypes.StreamDict)
		if !ok {
			continue
		}
		w := sd.IntEntry("Width")
		h := sd.IntEntry("Height")
		if w == nil || h == nil {
			continue
		}
		dims = append(dims, ImageDim{Width: *w, Height: *h})
	}
	return dims
}

// pageContent returns the raw content stream bytes for a page.
func (s *Scanner) pageContent(pageNum int) ([]byte, error) {
	r, err := pdfcpu.ExtractPageContent(s.ctx, pageNum)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(r)
}

// estimateTables infers a table count from ruling-line structure. A grid
// needs at least three horizontal and two vertical rules; each further
// cluster of horizontal rules suggests another table. Incidental single
// rules (underlines, header separators) never reach the minimum.
func estimateTables(hRules, vRules int) int {
	if hRules < 3 || vRules < 2 {
		return 0
	}
	// Rough: one table per ~8 horizontal rules beyond the first grid.
	return 1 + (hRules-3)/8
}
