package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/leaflet/internal/analyzer"
	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/pdfread"
	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/types"
)

// fakeSource is an in-memory PageSource.
type fakeSource struct {
	blocks     map[int][]pdfread.TextBlock
	blocksErr  error
	captureErr error
	captures   int
	sizeErr    error
	pageCount  int
}

func (f *fakeSource) Path() string   { return "/tmp/fake.pdf" }
func (f *fakeSource) PageCount() int { return f.pageCount }

func (f *fakeSource) PageSize(pageNum int) (float64, float64, error) {
	if f.sizeErr != nil {
		return 0, 0, f.sizeErr
	}
	return 612, 792, nil
}

func (f *fakeSource) TextBlocks(pageNum int) ([]pdfread.TextBlock, error) {
	if f.blocksErr != nil {
		return nil, f.blocksErr
	}
	return f.blocks[pageNum], nil
}

func (f *fakeSource) Capture(ctx context.Context, pageNum int) ([]byte, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captures++
	return []byte("png-bytes"), nil
}

func testExtractCfg() config.ExtractCfg {
	return config.ExtractCfg{
		Strategy:           "auto",
		MinNativeTextChars: 120,
		PageWorkers:        1,
		CaptureDPI:         300,
	}
}

func proseBlocks(pageNum, count int) []pdfread.TextBlock {
	blocks := make([]pdfread.TextBlock, count)
	for i := range blocks {
		blocks[i] = pdfread.TextBlock{
			PageNumber: pageNum,
			Text:       strings.Repeat("word ", 20),
			X0:         72, Y0: float64(700 - i*40), X1: 540, Y1: float64(730 - i*40),
			FontSize: 11,
		}
	}
	return blocks
}

func textDecision() analyzer.Decision {
	return analyzer.Decision{Strategy: types.StrategyTextOnly, NeedsExtraction: false}
}

func visualDecision() analyzer.Decision {
	return analyzer.Decision{Strategy: types.StrategySimpleVisual, NeedsExtraction: true}
}

func TestExtractPage_FastPathOnly(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: proseBlocks(1, 3)}}
	mock := providers.NewMockLayout()

	e, err := New(testExtractCfg(), mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, textDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}

	if res.UsedOCR {
		t.Error("text-only page with good yield should not use OCR")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("OCR provider called %d times, want 0", mock.RequestCount())
	}
	if src.captures != 0 {
		t.Errorf("page captured %d times, want 0", src.captures)
	}
	if len(res.Elements) != 3 {
		t.Fatalf("got %d elements, want 3", len(res.Elements))
	}
	for _, el := range res.Elements {
		if el.Method != types.MethodNative {
			t.Errorf("element %s method = %s, want native", el.ID, el.Method)
		}
		if el.BBox == nil {
			t.Errorf("element %s missing bbox", el.ID)
		}
	}
}

func TestExtractPage_OCRReplacesLowYield(t *testing.T) {
	// One tiny block: yield is well under the native minimum.
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{
		1: {{PageNumber: 1, Text: "scan artifact", X0: 10, Y0: 10, X1: 80, Y1: 22, FontSize: 10}},
	}}
	mock := providers.NewMockLayout()

	e, err := New(testExtractCfg(), mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, textDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}

	if !res.UsedOCR {
		t.Fatal("low-yield page should fall back to OCR")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("OCR provider called %d times, want 1", mock.RequestCount())
	}
	found := false
	for _, el := range res.Elements {
		if el.Method == types.MethodOCRLayout && el.Category == types.CategoryNarrativeText {
			found = true
			if el.BBox == nil {
				t.Error("OCR element missing normalized bbox")
			}
		}
		if el.Method == types.MethodNative {
			t.Errorf("native element %s survived OCR replacement", el.ID)
		}
	}
	if !found {
		t.Error("no OCR narrative element in result")
	}
}

func TestExtractPage_AugmentsGoodNativeOnVisualPage(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: proseBlocks(1, 4)}}
	mock := providers.NewMockLayout()
	mock.Result = &providers.LayoutResult{
		Elements: []providers.LayoutElement{
			{Category: "NarrativeText", Text: "ocr prose", BBox: &[4]float64{50, 50, 900, 300}},
			{Category: "Table", Text: "<table><tr><td>Q1</td></tr></table>", BBox: &[4]float64{100, 400, 900, 700}},
		},
	}

	e, err := New(testExtractCfg(), mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, visualDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}

	if !res.UsedOCR {
		t.Fatal("visual page should use OCR")
	}
	if len(res.Capture) == 0 {
		t.Error("visual page should keep its capture")
	}

	natives, tables, ocrProse := 0, 0, 0
	for _, el := range res.Elements {
		switch {
		case el.Method == types.MethodNative:
			natives++
		case el.Category == types.CategoryTable:
			tables++
		case el.Category == types.CategoryNarrativeText:
			ocrProse++
		}
	}
	if natives != 4 {
		t.Errorf("native elements = %d, want 4 (text layer is trusted)", natives)
	}
	if tables != 1 {
		t.Errorf("table elements = %d, want 1", tables)
	}
	if ocrProse != 0 {
		t.Errorf("OCR prose elements = %d, want 0 (only visual structure merges)", ocrProse)
	}
}

func TestExtractPage_OCRFailureDegrades(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: proseBlocks(1, 2)}}
	mock := providers.NewMockLayout()
	mock.ShouldFail = true

	e, err := New(testExtractCfg(), mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, visualDecision())
	if err != nil {
		t.Fatalf("ExtractPage should absorb provider failure, got %v", err)
	}

	if res.UsedOCR {
		t.Error("failed OCR should not be marked as used")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a partial-extraction warning")
	}
	if res.Warnings[0].Kind != types.WarnPartialExtraction {
		t.Errorf("warning kind = %s, want %s", res.Warnings[0].Kind, types.WarnPartialExtraction)
	}
	// Native elements survive plus the full-page image stand-in.
	if !hasCategory(res.Elements, types.CategoryImage) {
		t.Error("visual page should carry a full-page image element")
	}
	if !hasCategory(res.Elements, types.CategoryNarrativeText) {
		t.Error("native text should survive the OCR failure")
	}
}

func TestExtractPage_NativeOnlySkipsOCR(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: {}}}
	mock := providers.NewMockLayout()

	cfg := testExtractCfg()
	cfg.Strategy = "native_only"
	e, err := New(cfg, mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, visualDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("OCR provider called %d times under native_only", mock.RequestCount())
	}
	if res.UsedOCR {
		t.Error("native_only must never report OCR usage")
	}
}

func TestExtractPage_HybridForcesOCR(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: proseBlocks(1, 5)}}
	mock := providers.NewMockLayout()

	cfg := testExtractCfg()
	cfg.Strategy = "hybrid_ocr"
	e, err := New(cfg, mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, textDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if !res.UsedOCR {
		t.Error("hybrid_ocr should invoke OCR even on text pages")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("OCR provider called %d times, want 1", mock.RequestCount())
	}
}

func TestExtractPage_NilOCRProvider(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: {}}}

	e, err := New(testExtractCfg(), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, visualDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if res.UsedOCR {
		t.Error("nil provider cannot produce OCR output")
	}
	if !hasCategory(res.Elements, types.CategoryImage) {
		t.Error("capture-worthy page should still get a full-page image element")
	}
}

func TestExtractPage_DeterministicIDs(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: proseBlocks(1, 3)}}

	e, err := New(testExtractCfg(), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := e.ExtractPage(context.Background(), src, 1, textDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	second, err := e.ExtractPage(context.Background(), src, 1, textDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}

	if len(first.Elements) != len(second.Elements) {
		t.Fatalf("element counts differ: %d vs %d", len(first.Elements), len(second.Elements))
	}
	for i := range first.Elements {
		if first.Elements[i].ID != second.Elements[i].ID {
			t.Errorf("element %d id differs: %s vs %s", i, first.Elements[i].ID, second.Elements[i].ID)
		}
		want := fmt.Sprintf("p1-n%d", i)
		if first.Elements[i].ID != want {
			t.Errorf("element id = %s, want %s", first.Elements[i].ID, want)
		}
	}
}

func TestExtractPage_BadOCRBBoxYieldsWarning(t *testing.T) {
	src := &fakeSource{pageCount: 1, blocks: map[int][]pdfread.TextBlock{1: {}}}
	mock := providers.NewMockLayout()
	mock.Result = &providers.LayoutResult{
		Elements: []providers.LayoutElement{
			{Category: "NarrativeText", Text: "good", BBox: &[4]float64{0, 0, 500, 500}},
			{Category: "NarrativeText", Text: "bad", BBox: &[4]float64{900, 900, 100, 100}},
		},
	}

	e, err := New(testExtractCfg(), mock, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := e.ExtractPage(context.Background(), src, 1, visualDecision())
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}

	var good, bad *types.RawElement
	for i := range res.Elements {
		switch res.Elements[i].Text {
		case "good":
			good = &res.Elements[i]
		case "bad":
			bad = &res.Elements[i]
		}
	}
	if good == nil || good.BBox == nil {
		t.Error("valid bbox should normalize")
	}
	if bad == nil {
		t.Fatal("element with bad bbox should still be kept")
	}
	if bad.BBox != nil {
		t.Error("degenerate bbox must be dropped, not guessed")
	}

	warned := false
	for _, w := range res.Warnings {
		if w.Kind == types.WarnCoordinateNormalization && w.ElementID == bad.ID {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a coordinate-normalization warning for the bad element")
	}
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		name   string
		block  pdfread.TextBlock
		median float64
		want   types.Category
	}{
		{
			name:   "oversized short line is a title",
			block:  pdfread.TextBlock{Text: "3.1 Results", FontSize: 18},
			median: 11,
			want:   types.CategoryTitle,
		},
		{
			name:   "bullet marker is a list item",
			block:  pdfread.TextBlock{Text: "• first point in the list", FontSize: 11},
			median: 11,
			want:   types.CategoryListItem,
		},
		{
			name:   "numbered marker is a list item",
			block:  pdfread.TextBlock{Text: "2. second point", FontSize: 11},
			median: 11,
			want:   types.CategoryListItem,
		},
		{
			name:   "plain paragraph",
			block:  pdfread.TextBlock{Text: "The quick brown fox jumps over the lazy dog.", FontSize: 11},
			median: 11,
			want:   types.CategoryNarrativeText,
		},
		{
			name: "large font but long text stays narrative",
			block: pdfread.TextBlock{
				Text:     strings.Repeat("pull quote text ", 10),
				FontSize: 16,
			},
			median: 11,
			want:   types.CategoryNarrativeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyBlock(tt.block, tt.median); got != tt.want {
				t.Errorf("classifyBlock = %s, want %s", got, tt.want)
			}
		})
	}
}
