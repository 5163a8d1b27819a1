package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/home"
	"github.com/jackzampolin/leaflet/internal/pdfread"
	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/store"
	"github.com/jackzampolin/leaflet/internal/types"
)

// fakeDoc is an in-memory DocumentSource for pipeline tests.
type fakeDoc struct {
	path    string
	pages   int
	blocks  map[int][]pdfread.TextBlock
	sigs    map[int]*pdfread.Signals
	sigsErr map[int]error
}

func (f *fakeDoc) Path() string   { return f.path }
func (f *fakeDoc) PageCount() int { return f.pages }

func (f *fakeDoc) PageSize(pageNum int) (float64, float64, error) {
	return 612, 792, nil
}

func (f *fakeDoc) Signals(pageNum int) (*pdfread.Signals, error) {
	if err := f.sigsErr[pageNum]; err != nil {
		return nil, err
	}
	if sig, ok := f.sigs[pageNum]; ok {
		return sig, nil
	}
	return &pdfread.Signals{PageNumber: pageNum}, nil
}

func (f *fakeDoc) TextBlocks(pageNum int) ([]pdfread.TextBlock, error) {
	return f.blocks[pageNum], nil
}

func (f *fakeDoc) Capture(ctx context.Context, pageNum int) ([]byte, error) {
	return []byte("png-bytes"), nil
}

// twoPageDoc builds a document with a text page carrying a heading and
// prose, and a visual page that routes through OCR.
func twoPageDoc(path string) *fakeDoc {
	prose := strings.Repeat("Workers must wear helmets. ", 8)
	return &fakeDoc{
		path:  path,
		pages: 2,
		blocks: map[int][]pdfread.TextBlock{
			1: {
				{PageNumber: 1, Text: "1.2 Safety", X0: 72, Y0: 740, X1: 240, Y1: 760, FontSize: 18},
				{PageNumber: 1, Text: prose, X0: 72, Y0: 600, X1: 540, Y1: 720, FontSize: 11},
				{PageNumber: 1, Text: prose, X0: 72, Y0: 460, X1: 540, Y1: 580, FontSize: 11},
			},
		},
		sigs: map[int]*pdfread.Signals{
			1: {PageNumber: 1, NativeTextLength: 500},
			2: {PageNumber: 2, Images: []pdfread.ImageDim{{Width: 300, Height: 300}}},
		},
	}
}

func testProcessor(t *testing.T, doc *fakeDoc) (*Processor, *home.Dir) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Chunker.MinChunkSize = 10
	cfg.Extract.PageWorkers = 2

	registry := providers.NewRegistry()
	registry.SetOCR(providers.NewMockLayout())
	registry.SetCaptioner(providers.NewMockCaptioner())

	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}

	p := New(StaticConfig(cfg), registry, store.New(dir), nil)
	p.openSource = func(path string, dpi int) (DocumentSource, error) {
		if path != doc.path {
			return nil, fmt.Errorf("no such document: %s", path)
		}
		return doc, nil
	}
	return p, dir
}

func TestProcessDocument_EndToEnd(t *testing.T) {
	doc := twoPageDoc("/docs/manual.pdf")
	p, dir := testProcessor(t, doc)

	result, err := p.ProcessDocument(context.Background(), doc.path)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Status != types.StatusCompleted {
		t.Errorf("status = %s, warnings: %v", result.Status, result.Warnings)
	}
	if result.PageCount != 2 {
		t.Errorf("page count = %d", result.PageCount)
	}
	if result.Stats.NativePages != 1 || result.Stats.OCRPages != 1 {
		t.Errorf("stats = %+v, want 1 native and 1 ocr page", result.Stats)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("no chunks produced")
	}

	// Section title flows from the oversized heading into the prose chunk.
	var prose *types.Chunk
	for i := range result.Chunks {
		if strings.Contains(result.Chunks[i].Content, "helmets") {
			prose = &result.Chunks[i]
			break
		}
	}
	if prose == nil {
		t.Fatal("prose chunk missing")
	}
	if prose.Metadata.SectionTitleInherited != "1.2 Safety" {
		t.Errorf("inherited title = %q", prose.Metadata.SectionTitleInherited)
	}
	if !strings.HasPrefix(prose.Content, "Section: 1.2 Safety\n") {
		t.Error("prose chunk missing section prefix")
	}
	if prose.Metadata.BBox == nil {
		t.Error("prose chunk lost its bbox")
	}

	// The visual page's full-page image got a caption chunk.
	captioned := false
	for _, c := range result.Chunks {
		if c.IsCaptionDerived() && strings.HasPrefix(c.Content, "Type: Image") {
			captioned = true
		}
		if c.Metadata.ElementCategory == types.CategoryTitle {
			t.Error("title leaked into chunks")
		}
	}
	if !captioned {
		t.Error("no caption-derived image chunk")
	}

	// Artifacts on disk.
	if _, err := os.Stat(dir.ChunksPath(result.RunID)); err != nil {
		t.Errorf("chunks.jsonl missing: %v", err)
	}
	if _, err := os.Stat(dir.ResultPath(result.RunID)); err != nil {
		t.Errorf("result.json missing: %v", err)
	}
	if _, err := os.Stat(dir.CapturePath(result.RunID, 2)); err != nil {
		t.Errorf("page 2 capture missing: %v", err)
	}

	// Timings cover every stage.
	stages := map[string]bool{}
	for _, tm := range result.Timings {
		stages[tm.Stage] = true
	}
	for _, want := range []string{"analyze", "extract", "enrich", "caption", "chunk", "store"} {
		if !stages[want] {
			t.Errorf("missing %s timing", want)
		}
	}
}

func TestProcessDocument_Idempotent(t *testing.T) {
	doc := twoPageDoc("/docs/manual.pdf")
	p, _ := testProcessor(t, doc)

	first, err := p.ProcessDocument(context.Background(), doc.path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.ProcessDocument(context.Background(), doc.path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.Chunks) != len(second.Chunks) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first.Chunks), len(second.Chunks))
	}
	for i := range first.Chunks {
		a, b := first.Chunks[i], second.Chunks[i]
		if a.Content != b.Content {
			t.Errorf("chunk %d content differs", i)
		}
		am, bm := a.Metadata, b.Metadata
		if (am.BBox == nil) != (bm.BBox == nil) {
			t.Errorf("chunk %d bbox presence differs", i)
		} else if am.BBox != nil && *am.BBox != *bm.BBox {
			t.Errorf("chunk %d bbox differs: %v vs %v", i, *am.BBox, *bm.BBox)
		}
		am.BBox, bm.BBox = nil, nil
		if am != bm {
			t.Errorf("chunk %d metadata differs", i)
		}
	}
}

func TestProcessDocument_SignalFailureFallsBack(t *testing.T) {
	doc := twoPageDoc("/docs/manual.pdf")
	doc.sigsErr = map[int]error{2: fmt.Errorf("malformed page dictionary")}
	p, _ := testProcessor(t, doc)

	result, err := p.ProcessDocument(context.Background(), doc.path)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Status != types.StatusCompletedWithWarnings {
		t.Errorf("status = %s", result.Status)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Kind == types.WarnPageAnalysis && w.PageNumber == 2 {
			found = true
		}
	}
	if !found {
		t.Error("expected a page_analysis warning for page 2")
	}
}

func TestProcessDocument_OpenFailure(t *testing.T) {
	doc := twoPageDoc("/docs/manual.pdf")
	p, _ := testProcessor(t, doc)

	result, err := p.ProcessDocument(context.Background(), "/docs/missing.pdf")
	if err == nil {
		t.Fatal("expected error for missing document")
	}
	if result == nil || result.Status != types.StatusFailed {
		t.Fatal("failure must still yield a structured result")
	}
	if result.Error == "" {
		t.Error("result should carry the error message")
	}
}

func TestBatch_OrderAndIsolation(t *testing.T) {
	docs := map[string]*fakeDoc{
		"/docs/a.pdf": twoPageDoc("/docs/a.pdf"),
		"/docs/b.pdf": twoPageDoc("/docs/b.pdf"),
		"/docs/c.pdf": twoPageDoc("/docs/c.pdf"),
	}

	cfg := config.DefaultConfig()
	cfg.Chunker.MinChunkSize = 10

	registry := providers.NewRegistry()
	registry.SetOCR(providers.NewMockLayout())
	registry.SetCaptioner(providers.NewMockCaptioner())

	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}

	p := New(StaticConfig(cfg), registry, store.New(dir), nil)
	p.openSource = func(path string, dpi int) (DocumentSource, error) {
		doc, ok := docs[path]
		if !ok {
			return nil, fmt.Errorf("no such document: %s", path)
		}
		return doc, nil
	}

	paths := []string{"/docs/a.pdf", "/docs/b.pdf", "/docs/missing.pdf", "/docs/c.pdf"}
	results := p.Batch(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for i, r := range results {
		if r.SourcePath != paths[i] {
			t.Errorf("result %d is for %s, want %s", i, r.SourcePath, paths[i])
		}
	}
	if results[2].Status != types.StatusFailed {
		t.Errorf("missing document status = %s, want failed", results[2].Status)
	}
	for _, i := range []int{0, 1, 3} {
		if results[i].Status == types.StatusFailed {
			t.Errorf("document %s failed: %s", paths[i], results[i].Error)
		}
		if len(results[i].Chunks) == 0 {
			t.Errorf("document %s produced no chunks", paths[i])
		}
	}
	// Distinct documents get distinct runs.
	if results[0].RunID == results[1].RunID {
		t.Error("run IDs must be unique per document")
	}
}

func TestBatch_Empty(t *testing.T) {
	doc := twoPageDoc("/docs/manual.pdf")
	p, _ := testProcessor(t, doc)
	if results := p.Batch(context.Background(), nil); results != nil {
		t.Errorf("empty batch should return nil, got %v", results)
	}
}
