package config

import (
	"fmt"
	"time"
)

// ExtractionStrategy selects the global extraction mode. Unknown values
// are a construction-time error, never a silent default.
type ExtractionStrategy string

const (
	// ExtractionAuto lets the page analyzer pick per page.
	ExtractionAuto ExtractionStrategy = "auto"
	// ExtractionNativeOnly never calls the OCR capability.
	ExtractionNativeOnly ExtractionStrategy = "native_only"
	// ExtractionHybridOCR forces the OCR/capture path on every page.
	ExtractionHybridOCR ExtractionStrategy = "hybrid_ocr"
)

// ParseExtractionStrategy validates a strategy string.
func ParseExtractionStrategy(s string) (ExtractionStrategy, error) {
	switch ExtractionStrategy(s) {
	case ExtractionAuto, ExtractionNativeOnly, ExtractionHybridOCR:
		return ExtractionStrategy(s), nil
	}
	return "", fmt.Errorf("unknown extraction strategy %q (valid: auto, native_only, hybrid_ocr)", s)
}

// Config holds leaflet configuration.
// Stored at: ./config.yaml or ~/.leaflet/config.yaml
type Config struct {
	Analyzer  AnalyzerCfg  `mapstructure:"analyzer" yaml:"analyzer"`
	Extract   ExtractCfg   `mapstructure:"extract" yaml:"extract"`
	Chunker   ChunkerCfg   `mapstructure:"chunker" yaml:"chunker"`
	Pipeline  PipelineCfg  `mapstructure:"pipeline" yaml:"pipeline"`
	Providers ProvidersCfg `mapstructure:"providers" yaml:"providers"`
}

// AnalyzerCfg holds page-classification thresholds. These were tuned
// against sample corpora; treat them as configuration, not law.
type AnalyzerCfg struct {
	// MeaningfulImageMinPx filters logos/icons and fragmented slivers:
	// a raster image counts only when both rendered dimensions reach
	// this many pixels.
	MeaningfulImageMinPx int `mapstructure:"meaningful_image_min_px" yaml:"meaningful_image_min_px"`
	// ComplexImageCount is the meaningful-image count at which a page
	// is classified complex_visual rather than simple_visual.
	ComplexImageCount int `mapstructure:"complex_image_count" yaml:"complex_image_count"`
	// VectorItemThreshold is the vector-primitive count above which a
	// page is treated as a drawing. High enough that page borders and
	// letterheads do not trigger.
	VectorItemThreshold int `mapstructure:"vector_item_threshold" yaml:"vector_item_threshold"`
}

// ExtractCfg configures the element extractor.
type ExtractCfg struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"` // auto, native_only, hybrid_ocr
	// MinNativeTextChars is the fast-path yield below which a page is
	// assumed scanned and routed to the OCR fallback.
	MinNativeTextChars int `mapstructure:"min_native_text_chars" yaml:"min_native_text_chars"`
	// PageWorkers bounds fast-path page concurrency within a document.
	PageWorkers int `mapstructure:"page_workers" yaml:"page_workers"`
	// CaptureDPI is the pdftoppm render resolution for full-page captures.
	CaptureDPI int `mapstructure:"capture_dpi" yaml:"capture_dpi"`
}

// ChunkerCfg bounds chunk sizes in characters.
type ChunkerCfg struct {
	MinChunkSize int `mapstructure:"min_chunk_size" yaml:"min_chunk_size"`
	MaxChunkSize int `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`
}

// PipelineCfg configures batch processing.
type PipelineCfg struct {
	// MaxConcurrentDocs bounds documents processed at once. Kept small:
	// each in-flight document may hold OCR/VLM capacity.
	MaxConcurrentDocs int `mapstructure:"max_concurrent_docs" yaml:"max_concurrent_docs"`
}

// ProvidersCfg configures the external capabilities.
type ProvidersCfg struct {
	OCR     OCRProviderCfg     `mapstructure:"ocr" yaml:"ocr"`
	Caption CaptionProviderCfg `mapstructure:"caption" yaml:"caption"`
}

// OCRProviderCfg configures the OCR/layout capability.
type OCRProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`   // "openai", "mock"
	Model          string  `mapstructure:"model" yaml:"model"` // vision model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// CaptionProviderCfg configures the VLM captioning capability.
// Best-effort: when disabled or failing, raw extracted content is used.
type CaptionProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analyzer: AnalyzerCfg{
			MeaningfulImageMinPx: 50,
			ComplexImageCount:    2,
			VectorItemThreshold:  5000,
		},
		Extract: ExtractCfg{
			Strategy:           string(ExtractionAuto),
			MinNativeTextChars: 120,
			PageWorkers:        4,
			CaptureDPI:         300,
		},
		Chunker: ChunkerCfg{
			MinChunkSize: 200,
			MaxChunkSize: 2000,
		},
		Pipeline: PipelineCfg{
			MaxConcurrentDocs: 2,
		},
		Providers: ProvidersCfg{
			OCR: OCRProviderCfg{
				Type:           "openai",
				Model:          "gpt-4o",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      2.0,
				TimeoutSeconds: 120,
				MaxRetries:     3,
				Enabled:        true,
			},
			Caption: CaptionProviderCfg{
				Type:           "openai",
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      4.0,
				TimeoutSeconds: 60,
				MaxRetries:     2,
				Enabled:        true,
			},
		},
	}
}

// OCRTimeout returns the OCR call timeout as a duration.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.Providers.OCR.TimeoutSeconds) * time.Second
}

// CaptionTimeout returns the caption call timeout as a duration.
func (c *Config) CaptionTimeout() time.Duration {
	return time.Duration(c.Providers.Caption.TimeoutSeconds) * time.Second
}

// Validate checks semantic constraints that the type system cannot.
func (c *Config) Validate() error {
	if _, err := ParseExtractionStrategy(c.Extract.Strategy); err != nil {
		return err
	}
	if c.Analyzer.MeaningfulImageMinPx <= 0 {
		return fmt.Errorf("analyzer.meaningful_image_min_px must be positive, got %d", c.Analyzer.MeaningfulImageMinPx)
	}
	if c.Analyzer.ComplexImageCount < 1 {
		return fmt.Errorf("analyzer.complex_image_count must be at least 1, got %d", c.Analyzer.ComplexImageCount)
	}
	if c.Analyzer.VectorItemThreshold <= 0 {
		return fmt.Errorf("analyzer.vector_item_threshold must be positive, got %d", c.Analyzer.VectorItemThreshold)
	}
	if c.Chunker.MinChunkSize <= 0 {
		return fmt.Errorf("chunker.min_chunk_size must be positive, got %d", c.Chunker.MinChunkSize)
	}
	if c.Chunker.MaxChunkSize <= c.Chunker.MinChunkSize {
		return fmt.Errorf("chunker.max_chunk_size (%d) must exceed min_chunk_size (%d)",
			c.Chunker.MaxChunkSize, c.Chunker.MinChunkSize)
	}
	if c.Extract.PageWorkers < 1 {
		return fmt.Errorf("extract.page_workers must be at least 1, got %d", c.Extract.PageWorkers)
	}
	if c.Extract.CaptureDPI < 72 {
		return fmt.Errorf("extract.capture_dpi must be at least 72, got %d", c.Extract.CaptureDPI)
	}
	if c.Pipeline.MaxConcurrentDocs < 1 {
		return fmt.Errorf("pipeline.max_concurrent_docs must be at least 1, got %d", c.Pipeline.MaxConcurrentDocs)
	}
	return nil
}
