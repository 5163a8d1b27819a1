// Package pipeline orchestrates document processing: analyze pages,
// extract elements, enrich, caption, chunk, and persist. Documents in a
// batch are isolated; nothing mutable is shared between them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/leaflet/internal/analyzer"
	"github.com/jackzampolin/leaflet/internal/caption"
	"github.com/jackzampolin/leaflet/internal/chunker"
	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/enrich"
	"github.com/jackzampolin/leaflet/internal/extract"
	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/store"
	"github.com/jackzampolin/leaflet/internal/types"
)

// ConfigSource yields the current configuration. The config manager
// satisfies this, so reloads are picked up between documents — a
// document in flight always finishes under the config it started with.
type ConfigSource interface {
	Get() *config.Config
}

// StaticConfig wraps a fixed config as a ConfigSource.
func StaticConfig(cfg *config.Config) ConfigSource {
	return staticConfig{cfg}
}

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Get() *config.Config { return s.cfg }

// Processor runs the full pipeline over documents.
type Processor struct {
	cfgSource ConfigSource
	registry  *providers.Registry
	store     *store.Store
	logger    *slog.Logger

	// openSource is swappable for tests.
	openSource func(path string, dpi int) (DocumentSource, error)
}

// New creates a Processor.
func New(cfgSource ConfigSource, registry *providers.Registry, st *store.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfgSource:  cfgSource,
		registry:   registry,
		store:      st,
		logger:     logger,
		openSource: openScannerSource,
	}
}

// pageOutcome pairs one page's classification with its extraction.
type pageOutcome struct {
	decision analyzer.Decision
	result   *extract.PageResult
}

// ProcessDocument runs one document through every stage. The returned
// result always carries whatever was produced before any failure; the
// error return is non-nil only for document-level failure or
// cancellation.
func (p *Processor) ProcessDocument(ctx context.Context, path string) (*types.DocumentResult, error) {
	cfg := p.cfgSource.Get()

	result := &types.DocumentResult{
		RunID:          uuid.New().String(),
		SourcePath:     path,
		SourceFilename: filepath.Base(path),
		Status:         types.StatusCompleted,
	}
	logger := p.logger.With("run_id", result.RunID, "file", result.SourceFilename)

	src, err := p.openSource(path, cfg.Extract.CaptureDPI)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result, fmt.Errorf("failed to open document: %w", err)
	}
	result.PageCount = src.PageCount()
	logger.Info("processing document", "pages", result.PageCount)

	// Analyze.
	started := time.Now()
	decisions := p.analyzePages(src, cfg, result)
	result.Timings = append(result.Timings, types.StageTiming{Stage: "analyze", Duration: time.Since(started)})

	// Extract, fast-path pages concurrently.
	started = time.Now()
	outcomes, err := p.extractPages(ctx, src, cfg, decisions, result)
	result.Timings = append(result.Timings, types.StageTiming{Stage: "extract", Duration: time.Since(started)})
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result, err
	}

	elements, captures, strategies := collectOutcomes(outcomes, result)
	if result.PageCount > 0 && len(elements) == 0 {
		err := fmt.Errorf("no pages extractable from %s", result.SourceFilename)
		result.Status = types.StatusFailed
		result.Error = err.Error()
		p.persist(result, nil, captures, logger)
		return result, err
	}

	// Enrich.
	started = time.Now()
	enriched := enrich.Enrich(elements, result.SourceFilename, strategies)
	result.Timings = append(result.Timings, types.StageTiming{Stage: "enrich", Duration: time.Since(started)})

	// Caption, best-effort.
	started = time.Now()
	captioner, capLimiter := p.registry.Captioner()
	fuser := caption.New(captioner, capLimiter, cfg.CaptionTimeout(), logger)
	capWarnings, err := fuser.Fuse(ctx, enriched, captures)
	result.Warnings = append(result.Warnings, capWarnings...)
	result.Timings = append(result.Timings, types.StageTiming{Stage: "caption", Duration: time.Since(started)})
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result, err
	}

	// Chunk.
	started = time.Now()
	chunks := chunker.Construct(enriched, cfg.Chunker)
	result.Chunks = chunks
	result.Timings = append(result.Timings, types.StageTiming{Stage: "chunk", Duration: time.Since(started)})

	if len(result.Warnings) > 0 {
		result.Status = types.StatusCompletedWithWarnings
	}

	// Persist.
	started = time.Now()
	if err := p.persist(result, chunks, captures, logger); err != nil {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result, err
	}
	result.Timings = append(result.Timings, types.StageTiming{Stage: "store", Duration: time.Since(started)})

	logger.Info("document processed",
		"status", result.Status,
		"chunks", len(chunks),
		"warnings", len(result.Warnings))
	return result, nil
}

// analyzePages classifies every page. Signal failures degrade to the
// text_only fallback with a warning.
func (p *Processor) analyzePages(src DocumentSource, cfg *config.Config, result *types.DocumentResult) map[int]analyzer.Decision {
	decisions := make(map[int]analyzer.Decision, src.PageCount())
	for n := 1; n <= src.PageCount(); n++ {
		sig, err := src.Signals(n)
		if err != nil {
			page, dec := analyzer.FallbackPage(n)
			result.AddWarning(types.WarnPageAnalysis, n, "",
				fmt.Sprintf("page analysis failed: %v", err))
			result.Pages = append(result.Pages, page)
			decisions[n] = dec
			continue
		}
		page, dec := analyzer.Analyze(sig, cfg.Analyzer)
		result.Pages = append(result.Pages, page)
		decisions[n] = dec
	}
	return decisions
}

// extractPages runs the extractor over all pages with bounded
// concurrency. Results land in a page-indexed slice, so document order
// is re-established regardless of completion order.
func (p *Processor) extractPages(ctx context.Context, src DocumentSource, cfg *config.Config, decisions map[int]analyzer.Decision, result *types.DocumentResult) ([]pageOutcome, error) {
	ocr, ocrLimiter := p.registry.OCR()
	extractor, err := extract.New(cfg.Extract, ocr, ocrLimiter, cfg.OCRTimeout(), p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	pageCount := src.PageCount()
	workers := cfg.Extract.PageWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > pageCount {
		workers = pageCount
	}

	outcomes := make([]pageOutcome, pageCount)
	pages := make(chan int)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range pages {
				res, err := extractor.ExtractPage(ctx, src, n, decisions[n])
				if err != nil {
					errs <- err
					return
				}
				outcomes[n-1] = pageOutcome{decision: decisions[n], result: res}
			}
		}()
	}

feed:
	for n := 1; n <= pageCount; n++ {
		select {
		case pages <- n:
		case <-ctx.Done():
			break feed
		}
	}
	close(pages)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// collectOutcomes flattens per-page results into the ordered element
// stream, the capture map, and the strategy map, accumulating warnings
// and extraction stats on the result.
func collectOutcomes(outcomes []pageOutcome, result *types.DocumentResult) ([]types.RawElement, map[int][]byte, map[int]types.PageStrategy) {
	var elements []types.RawElement
	captures := make(map[int][]byte)
	strategies := make(map[int]types.PageStrategy, len(outcomes))

	totalChars := 0
	for _, o := range outcomes {
		if o.result == nil {
			continue
		}
		strategies[o.result.PageNumber] = o.decision.Strategy
		result.Warnings = append(result.Warnings, o.result.Warnings...)

		if o.result.UsedOCR {
			result.Stats.OCRPages++
		} else {
			result.Stats.NativePages++
		}
		if len(o.result.Capture) > 0 {
			captures[o.result.PageNumber] = o.result.Capture
		}
		for _, el := range o.result.Elements {
			totalChars += len(el.Text)
		}
		elements = append(elements, o.result.Elements...)
	}

	result.Stats.ElementCount = len(elements)
	if pages := result.Stats.NativePages + result.Stats.OCRPages; pages > 0 {
		result.Stats.CharsPerPage = float64(totalChars) / float64(pages)
	}
	return elements, captures, strategies
}

// persist writes chunks, captures, and the manifest. Capture write
// failures are warnings; chunk or manifest failures fail the document.
func (p *Processor) persist(result *types.DocumentResult, chunks []types.Chunk, captures map[int][]byte, logger *slog.Logger) error {
	if p.store == nil {
		return nil
	}
	for pageNum, data := range captures {
		if err := p.store.WriteCapture(result.RunID, pageNum, data); err != nil {
			logger.Warn("failed to write capture", "page", pageNum, "error", err)
			result.AddWarning(types.WarnPartialExtraction, pageNum, "",
				fmt.Sprintf("failed to persist capture: %v", err))
		}
	}
	if result.Status == types.StatusCompleted && len(result.Warnings) > 0 {
		result.Status = types.StatusCompletedWithWarnings
	}
	if err := p.store.WriteChunks(result.RunID, chunks); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	if err := p.store.WriteResult(result.RunID, result); err != nil {
		return fmt.Errorf("failed to write result manifest: %w", err)
	}
	return nil
}
