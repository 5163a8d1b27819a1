// Package analyzer classifies each page's extraction need from cheap
// structural signals, before any model capability is invoked.
package analyzer

import (
	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/pdfread"
	"github.com/jackzampolin/leaflet/internal/types"
)

// Decision is the analyzer's verdict for one page.
type Decision struct {
	Strategy        types.PageStrategy
	NeedsExtraction bool
	Reason          string
}

// Analyze classifies a page. Checks run in strict precedence order:
// meaningful raster images, then vector-drawing density, then tables,
// then plain text. Raster images are the strongest and cheapest signal;
// vector density separates diagrams from prose; tables alone are the
// weakest signal (many text pages contain incidental small tables), so
// they are checked last.
func Analyze(sig *pdfread.Signals, cfg config.AnalyzerCfg) (types.Page, Decision) {
	meaningful := 0
	for _, img := range sig.Images {
		// Size filter keeps logos, icons, and fragmented scan slivers
		// from counting; only images large enough to carry content do.
		if img.Width >= cfg.MeaningfulImageMinPx && img.Height >= cfg.MeaningfulImageMinPx {
			meaningful++
		}
	}

	page := types.Page{
		PageNumber:             sig.PageNumber,
		NativeTextLength:       sig.NativeTextLength,
		RasterImageCount:       len(sig.Images),
		MeaningfulImageCount:   meaningful,
		VectorDrawingItemCount: sig.VectorItemCount,
		TableCount:             sig.TableCount,
	}

	switch {
	case meaningful >= cfg.ComplexImageCount:
		return page, Decision{
			Strategy:        types.StrategyComplexVisual,
			NeedsExtraction: true,
			Reason:          "multiple meaningful raster images",
		}
	case meaningful >= 1:
		return page, Decision{
			Strategy:        types.StrategySimpleVisual,
			NeedsExtraction: true,
			Reason:          "single meaningful raster image",
		}
	case sig.VectorItemCount > cfg.VectorItemThreshold:
		return page, Decision{
			Strategy:        types.StrategyVectorDrawing,
			NeedsExtraction: true,
			Reason:          "vector-drawing density above threshold",
		}
	case sig.TableCount >= 1:
		return page, Decision{
			Strategy:        types.StrategyTableOnly,
			NeedsExtraction: true,
			Reason:          "detected table ruling structure",
		}
	default:
		return page, Decision{
			Strategy:        types.StrategyTextOnly,
			NeedsExtraction: false,
			Reason:          "no visual signals",
		}
	}
}

// FallbackPage returns the default classification for a page whose
// signals could not be read. The page is treated as plain text and
// processing continues; the caller records the warning.
func FallbackPage(pageNum int) (types.Page, Decision) {
	return types.Page{PageNumber: pageNum}, Decision{
		Strategy:        types.StrategyTextOnly,
		NeedsExtraction: false,
		Reason:          "analysis failed, defaulted to text_only",
	}
}
