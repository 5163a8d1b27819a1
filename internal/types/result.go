package types

import "time"

// Status summarizes the outcome of processing one document.
type Status string

const (
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// WarningKind identifies a recovered failure class.
type WarningKind string

const (
	WarnPageAnalysis            WarningKind = "page_analysis"
	WarnPartialExtraction       WarningKind = "partial_extraction"
	WarnCoordinateNormalization WarningKind = "coordinate_normalization"
	WarnCaptionUnavailable      WarningKind = "caption_unavailable"
	WarnChunkConstruction       WarningKind = "chunk_construction"
)

// Warning records a recovered per-page or per-element failure with
// enough context to locate the source.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	PageNumber int         `json:"page_number,omitempty"`
	ElementID  string      `json:"element_id,omitempty"`
	Message    string      `json:"message"`
}

// ExtractionStats reports aggregate extraction quality for a document.
type ExtractionStats struct {
	NativePages  int     `json:"native_pages"`
	OCRPages     int     `json:"ocr_pages"`
	ElementCount int     `json:"element_count"`
	CharsPerPage float64 `json:"chars_per_page"`
}

// StageTiming records wall-clock duration of one pipeline stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// DocumentResult is the full outcome of one document-processing run.
// Chunks built before a document-level failure are preserved; callers
// must be able to use partial output on warning status.
type DocumentResult struct {
	RunID          string          `json:"run_id"`
	SourcePath     string          `json:"source_path"`
	SourceFilename string          `json:"source_filename"`
	Status         Status          `json:"status"`
	PageCount      int             `json:"page_count"`
	Pages          []Page          `json:"pages,omitempty"`
	Chunks         []Chunk         `json:"chunks"`
	Warnings       []Warning       `json:"warnings,omitempty"`
	Stats          ExtractionStats `json:"stats"`
	Timings        []StageTiming   `json:"timings,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// AddWarning appends a warning to the result.
func (r *DocumentResult) AddWarning(kind WarningKind, page int, elementID, msg string) {
	r.Warnings = append(r.Warnings, Warning{
		Kind:       kind,
		PageNumber: page,
		ElementID:  elementID,
		Message:    msg,
	})
}
