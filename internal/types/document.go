// Package types defines the data model shared by the segmentation pipeline
// stages: pages, elements, metadata, chunks, and per-document results.
package types

// BBox is an axis-aligned bounding box [x0, y0, x1, y1] in page-point
// coordinates with the origin at the top-left of the page.
type BBox [4]float64

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	out := b
	if o[0] < out[0] {
		out[0] = o[0]
	}
	if o[1] < out[1] {
		out[1] = o[1]
	}
	if o[2] > out[2] {
		out[2] = o[2]
	}
	if o[3] > out[3] {
		out[3] = o[3]
	}
	return out
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b[3] - b[1] }

// PageStrategy selects how a page's elements are extracted.
type PageStrategy string

const (
	StrategyTextOnly      PageStrategy = "text_only"
	StrategySimpleVisual  PageStrategy = "simple_visual"
	StrategyComplexVisual PageStrategy = "complex_visual"
	StrategyVectorDrawing PageStrategy = "vector_drawing"
	StrategyTableOnly     PageStrategy = "table_only"
)

// NeedsCapture reports whether pages with this strategy require a
// full-page raster capture for downstream OCR/captioning.
func (s PageStrategy) NeedsCapture() bool {
	switch s {
	case StrategySimpleVisual, StrategyComplexVisual, StrategyVectorDrawing:
		return true
	}
	return false
}

// Page holds the cheap structural signals computed once per page by the
// analyzer. Immutable after creation.
type Page struct {
	PageNumber             int `json:"page_number"`
	NativeTextLength       int `json:"native_text_length"`
	RasterImageCount       int `json:"raster_image_count"`
	MeaningfulImageCount   int `json:"meaningful_image_count"`
	VectorDrawingItemCount int `json:"vector_drawing_item_count"`
	TableCount             int `json:"table_count"`
}

// Category classifies an element. Source-specific categories
// (NarrativeText, ListItem) are normalized into the closed set
// {Text, Table, Image, List, Title} during enrichment.
type Category string

const (
	CategoryText  Category = "Text"
	CategoryTable Category = "Table"
	CategoryImage Category = "Image"
	CategoryList  Category = "List"
	CategoryTitle Category = "Title"

	// Source categories emitted by extraction, folded into the closed
	// set by the enricher. List grouping in the chunk constructor keys
	// off these before normalization.
	CategoryNarrativeText Category = "NarrativeText"
	CategoryListItem      Category = "ListItem"
)

// ExtractionMethod records which path produced an element.
type ExtractionMethod string

const (
	MethodNative    ExtractionMethod = "native"
	MethodOCRLayout ExtractionMethod = "ocr_layout"
)

// RawElement is a structural unit extracted from a page. BBox is nil only
// when the source genuinely carried no coordinates; a bbox that failed
// normalization is reported through a warning, never silently dropped.
// Read-only after extraction; later stages attach new metadata rather
// than mutating fields.
type RawElement struct {
	ID         string           `json:"id"`
	PageNumber int              `json:"page_number"`
	Category   Category         `json:"category"`
	Text       string           `json:"text"`
	BBox       *BBox            `json:"bbox,omitempty"`
	Method     ExtractionMethod `json:"extraction_method"`
}

// StructuralMetadata is attached to every element by the enricher.
type StructuralMetadata struct {
	SourceFilename        string       `json:"source_filename"`
	PageNumber            int          `json:"page_number"`
	BBox                  *BBox        `json:"bbox,omitempty"`
	ElementCategory       Category     `json:"element_category"`
	SectionTitleInherited string       `json:"section_title_inherited,omitempty"`
	SectionTitlePattern   string       `json:"section_title_pattern,omitempty"`
	HasNumbers            bool         `json:"has_numbers"`
	ContentLength         int          `json:"content_length"`
	PageContext           PageStrategy `json:"page_context"`
}

// EnrichmentMetadata carries best-effort captions for visual elements.
// Absent for text elements.
type EnrichmentMetadata struct {
	TableImageCaption    string `json:"table_image_caption,omitempty"`
	FullPageImageCaption string `json:"full_page_image_caption,omitempty"`
}

// EnrichedElement pairs an element with its structural metadata and,
// for tables/images, optional enrichment.
type EnrichedElement struct {
	Element    RawElement
	Structural StructuralMetadata
	Enrichment *EnrichmentMetadata
}

// Caption returns the enrichment caption, if any.
func (e *EnrichedElement) Caption() string {
	if e.Enrichment == nil {
		return ""
	}
	if e.Enrichment.TableImageCaption != "" {
		return e.Enrichment.TableImageCaption
	}
	return e.Enrichment.FullPageImageCaption
}
