// Package providers implements clients for the external model
// capabilities the pipeline consumes: OCR/layout extraction and VLM
// captioning. Providers are rate limited and retried; callers treat
// failures as recoverable per-page or per-element conditions.
package providers

import (
	"context"
	"time"
)

// CoordSpace declares which coordinate system a provider's bounding
// boxes are expressed in. Boxes must be normalized into canonical
// page-point space (origin top-left) before leaving the extractor.
type CoordSpace string

const (
	// CoordPagePoints is the canonical space: PDF points, origin top-left.
	CoordPagePoints CoordSpace = "page_points"
	// CoordPDFBottomLeft is native PDF point space, origin bottom-left.
	CoordPDFBottomLeft CoordSpace = "pdf_bottom_left"
	// CoordNormalizedThousand is a 0-1000 grid over the page, origin
	// top-left. Common for vision-model layout output.
	CoordNormalizedThousand CoordSpace = "normalized_1000"
	// CoordCapturePixels is pixel space of the rendered capture, origin
	// top-left; scale depends on the capture DPI.
	CoordCapturePixels CoordSpace = "capture_pixels"
)

// LayoutElement is one element returned by the OCR/layout capability.
type LayoutElement struct {
	Category string     `json:"category"` // NarrativeText, ListItem, Title, Table, Image
	Text     string     `json:"text"`
	BBox     *[4]float64 `json:"bbox,omitempty"`
}

// TableStructure is a detected table with its structured rendering.
type TableStructure struct {
	BBox *[4]float64 `json:"bbox,omitempty"`
	HTML string      `json:"html,omitempty"`
}

// LayoutResult is the full OCR/layout output for one page.
type LayoutResult struct {
	Elements []LayoutElement  `json:"elements"`
	Tables   []TableStructure `json:"tables,omitempty"`
	Space    CoordSpace       `json:"coord_space"`

	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// OCRLayout extracts text and table structure with coordinates from a
// rendered page image.
type OCRLayout interface {
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string

	// ExtractLayout runs layout-aware OCR on a page image.
	ExtractLayout(ctx context.Context, image []byte, pageNum int) (*LayoutResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// CaptionKind tells the captioner what region it is looking at.
type CaptionKind string

const (
	CaptionTable CaptionKind = "table"
	CaptionImage CaptionKind = "image"
)

// Captioner produces a short natural-language caption for an image or
// table region. Best-effort: callers fall back to raw content on error.
type Captioner interface {
	Name() string
	Caption(ctx context.Context, image []byte, kind CaptionKind) (string, error)

	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}
