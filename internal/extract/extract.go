// Package extract turns classified pages into raw elements with
// bounding boxes, choosing between the native text layer and the
// OCR/layout fallback.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackzampolin/leaflet/internal/analyzer"
	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/pdfread"
	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/types"
)

// PageSource abstracts local PDF reading so tests can fake it.
type PageSource interface {
	Path() string
	PageCount() int
	PageSize(pageNum int) (width, height float64, err error)
	TextBlocks(pageNum int) ([]pdfread.TextBlock, error)
	Capture(ctx context.Context, pageNum int) ([]byte, error)
}

// PageResult is everything extracted from one page.
type PageResult struct {
	PageNumber int
	Elements   []types.RawElement
	Capture    []byte // full-page raster, present for visual pages
	UsedOCR    bool
	Warnings   []types.Warning
}

// Extractor produces raw elements for classified pages.
type Extractor struct {
	cfg        config.ExtractCfg
	strategy   config.ExtractionStrategy
	ocr        providers.OCRLayout
	ocrLimiter *providers.RateLimiter
	ocrTimeout time.Duration
	logger     *slog.Logger
}

// New creates an Extractor. ocr may be nil when the OCR capability is
// disabled; visual pages then keep whatever the fast path yields.
func New(cfg config.ExtractCfg, ocr providers.OCRLayout, limiter *providers.RateLimiter, ocrTimeout time.Duration, logger *slog.Logger) (*Extractor, error) {
	strategy, err := config.ParseExtractionStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		cfg:        cfg,
		strategy:   strategy,
		ocr:        ocr,
		ocrLimiter: limiter,
		ocrTimeout: ocrTimeout,
		logger:     logger,
	}, nil
}

// ExtractPage extracts all elements from one page. Failures yield zero
// elements plus warnings; the error return is reserved for context
// cancellation so a batch can stop cleanly.
func (e *Extractor) ExtractPage(ctx context.Context, src PageSource, pageNum int, dec analyzer.Decision) (*PageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &PageResult{PageNumber: pageNum}

	pageW, pageH, sizeErr := src.PageSize(pageNum)

	// Fast path runs regardless of strategy: near-zero cost and the
	// yield decides whether the page looks scanned.
	native, nativeYield := e.fastPath(src, pageNum, pageW, pageH, sizeErr == nil, result)

	useOCR := e.shouldUseOCR(dec, nativeYield)
	needCapture := dec.Strategy.NeedsCapture() || e.strategy == config.ExtractionHybridOCR

	if !useOCR && !needCapture {
		result.Elements = native
		if len(native) == 0 && nativeYield == 0 {
			result.AddWarning(types.WarnPartialExtraction, pageNum, "",
				"no native text and OCR not required for this page")
		}
		return result, nil
	}

	capture, err := src.Capture(ctx, pageNum)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.AddWarning(types.WarnPartialExtraction, pageNum, "",
			fmt.Sprintf("page capture failed: %v", err))
		result.Elements = native
		return result, nil
	}
	result.Capture = capture

	if !useOCR || e.ocr == nil {
		result.Elements = e.withFullPageImage(native, pageNum, pageW, pageH, dec)
		return result, nil
	}

	layout, err := e.callOCR(ctx, capture, pageNum)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.AddWarning(types.WarnPartialExtraction, pageNum, "",
			fmt.Sprintf("ocr layout extraction failed: %v", err))
		result.Elements = e.withFullPageImage(native, pageNum, pageW, pageH, dec)
		return result, nil
	}
	result.UsedOCR = true

	ocrElements := e.convertLayout(layout, pageNum, pageW, pageH, result)

	// Good native yield on a visual page: the text layer is trusted and
	// OCR contributes only the visual structure (tables, figures).
	// Low yield means a scanned page, so OCR output replaces it wholesale.
	if nativeYield >= e.cfg.MinNativeTextChars && e.strategy != config.ExtractionHybridOCR {
		merged := native
		for _, el := range ocrElements {
			if el.Category == types.CategoryTable || el.Category == types.CategoryImage {
				merged = append(merged, el)
			}
		}
		result.Elements = e.withFullPageImage(merged, pageNum, pageW, pageH, dec)
	} else {
		result.Elements = e.withFullPageImage(ocrElements, pageNum, pageW, pageH, dec)
	}

	return result, nil
}

// shouldUseOCR applies the configured strategy to the analyzer decision.
func (e *Extractor) shouldUseOCR(dec analyzer.Decision, nativeYield int) bool {
	switch e.strategy {
	case config.ExtractionNativeOnly:
		return false
	case config.ExtractionHybridOCR:
		return true
	default: // auto
		return dec.NeedsExtraction || nativeYield < e.cfg.MinNativeTextChars
	}
}

// fastPath extracts native text blocks and converts them to elements.
// Returns the elements and the total character yield.
func (e *Extractor) fastPath(src PageSource, pageNum int, pageW, pageH float64, haveSize bool, result *PageResult) ([]types.RawElement, int) {
	blocks, err := src.TextBlocks(pageNum)
	if err != nil {
		result.AddWarning(types.WarnPartialExtraction, pageNum, "",
			fmt.Sprintf("native text extraction failed: %v", err))
		return nil, 0
	}

	medianSize := medianFontSize(blocks)

	var elements []types.RawElement
	yield := 0
	for i, b := range blocks {
		yield += len(b.Text)

		el := types.RawElement{
			ID:         elementID(pageNum, types.MethodNative, i),
			PageNumber: pageNum,
			Category:   classifyBlock(b, medianSize),
			Text:       b.Text,
			Method:     types.MethodNative,
		}

		if haveSize {
			bbox, nerr := NormalizeBBox([4]float64{b.X0, b.Y0, b.X1, b.Y1},
				providers.CoordPDFBottomLeft, pageW, pageH, 0)
			if nerr != nil {
				result.AddWarning(types.WarnCoordinateNormalization, pageNum, el.ID, nerr.Error())
			} else {
				el.BBox = bbox
			}
		} else {
			result.AddWarning(types.WarnCoordinateNormalization, pageNum, el.ID,
				"page size unavailable, bbox omitted")
		}

		elements = append(elements, el)
	}
	return elements, yield
}

// callOCR invokes the fallback capability under the rate limiter and
// timeout. Timeouts are recoverable per-page failures.
func (e *Extractor) callOCR(ctx context.Context, capture []byte, pageNum int) (*providers.LayoutResult, error) {
	if e.ocrLimiter != nil {
		if err := e.ocrLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx := ctx
	if e.ocrTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.ocrTimeout)
		defer cancel()
	}

	return e.ocr.ExtractLayout(callCtx, capture, pageNum)
}

// convertLayout maps provider layout output to raw elements with
// normalized bboxes. Table structures keep their HTML rendering as
// element text; no per-table crop is produced, the full-page capture
// already covers the region.
func (e *Extractor) convertLayout(layout *providers.LayoutResult, pageNum int, pageW, pageH float64, result *PageResult) []types.RawElement {
	var elements []types.RawElement

	idx := 0
	for _, le := range layout.Elements {
		if strings.TrimSpace(le.Text) == "" && le.Category != "Image" {
			continue
		}
		el := types.RawElement{
			ID:         elementID(pageNum, types.MethodOCRLayout, idx),
			PageNumber: pageNum,
			Category:   types.Category(le.Category),
			Text:       le.Text,
			Method:     types.MethodOCRLayout,
		}
		idx++

		if le.BBox != nil {
			bbox, nerr := NormalizeBBox(*le.BBox, layout.Space, pageW, pageH, e.cfg.CaptureDPI)
			if nerr != nil {
				result.AddWarning(types.WarnCoordinateNormalization, pageNum, el.ID, nerr.Error())
			} else {
				el.BBox = bbox
			}
		}

		elements = append(elements, el)
	}

	// Tables reported separately carry their structured rendering.
	seenTable := hasCategory(elements, types.CategoryTable)
	for _, tbl := range layout.Tables {
		if tbl.HTML == "" || seenTable {
			continue
		}
		el := types.RawElement{
			ID:         elementID(pageNum, types.MethodOCRLayout, idx),
			PageNumber: pageNum,
			Category:   types.CategoryTable,
			Text:       tbl.HTML,
			Method:     types.MethodOCRLayout,
		}
		idx++
		if tbl.BBox != nil {
			bbox, nerr := NormalizeBBox(*tbl.BBox, layout.Space, pageW, pageH, e.cfg.CaptureDPI)
			if nerr != nil {
				result.AddWarning(types.WarnCoordinateNormalization, pageNum, el.ID, nerr.Error())
			} else {
				el.BBox = bbox
			}
		}
		elements = append(elements, el)
	}

	return elements
}

// withFullPageImage appends a full-page image element for visually
// classified pages so the capture is represented in the element stream
// and can receive a caption.
func (e *Extractor) withFullPageImage(elements []types.RawElement, pageNum int, pageW, pageH float64, dec analyzer.Decision) []types.RawElement {
	if !dec.Strategy.NeedsCapture() {
		return elements
	}
	if hasCategory(elements, types.CategoryImage) {
		return elements
	}
	el := types.RawElement{
		ID:         elementID(pageNum, types.MethodOCRLayout, len(elements)+1000),
		PageNumber: pageNum,
		Category:   types.CategoryImage,
		Method:     types.MethodOCRLayout,
	}
	if pageW > 0 && pageH > 0 {
		el.BBox = &types.BBox{0, 0, pageW, pageH}
	}
	return append(elements, el)
}

var listMarkerRe = regexp.MustCompile(`^\s*([-*•‣◦]|\d+[.)]|[a-z][.)])\s+`)

// classifyBlock assigns a source category from layout cues: oversized
// fonts read as headings, list markers as list items, the rest as
// narrative text.
func classifyBlock(b pdfread.TextBlock, medianFont float64) types.Category {
	trimmed := strings.TrimSpace(b.Text)
	lineCount := strings.Count(trimmed, "\n") + 1

	if medianFont > 0 && b.FontSize >= medianFont*1.3 && lineCount <= 2 && len(trimmed) < 120 {
		return types.CategoryTitle
	}
	if listMarkerRe.MatchString(trimmed) {
		return types.CategoryListItem
	}
	return types.CategoryNarrativeText
}

func medianFontSize(blocks []pdfread.TextBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	sizes := make([]float64, 0, len(blocks))
	for _, b := range blocks {
		sizes = append(sizes, b.FontSize)
	}
	// Insertion sort: block counts per page are small.
	for i := 1; i < len(sizes); i++ {
		for j := i; j > 0 && sizes[j] < sizes[j-1]; j-- {
			sizes[j], sizes[j-1] = sizes[j-1], sizes[j]
		}
	}
	return sizes[len(sizes)/2]
}

func hasCategory(elements []types.RawElement, cat types.Category) bool {
	for _, el := range elements {
		if el.Category == cat {
			return true
		}
	}
	return false
}

// elementID builds a deterministic element identifier so repeated runs
// over the same input produce identical output.
func elementID(pageNum int, method types.ExtractionMethod, idx int) string {
	prefix := "n"
	if method == types.MethodOCRLayout {
		prefix = "o"
	}
	return fmt.Sprintf("p%d-%s%d", pageNum, prefix, idx)
}

// AddWarning appends a warning to the page result.
func (r *PageResult) AddWarning(kind types.WarningKind, page int, elementID, msg string) {
	r.Warnings = append(r.Warnings, types.Warning{
		Kind:       kind,
		PageNumber: page,
		ElementID:  elementID,
		Message:    msg,
	})
}
