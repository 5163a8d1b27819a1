package analyzer

import (
	"testing"

	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/pdfread"
	"github.com/jackzampolin/leaflet/internal/types"
)

func testCfg() config.AnalyzerCfg {
	return config.AnalyzerCfg{
		MeaningfulImageMinPx: 50,
		ComplexImageCount:    2,
		VectorItemThreshold:  5000,
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name             string
		sig              pdfread.Signals
		wantStrategy     types.PageStrategy
		wantNeedsExtract bool
	}{
		{
			name: "three large images is complex visual",
			sig: pdfread.Signals{
				PageNumber: 1,
				Images: []pdfread.ImageDim{
					{Width: 50, Height: 50},
					{Width: 200, Height: 300},
					{Width: 640, Height: 480},
				},
			},
			wantStrategy:     types.StrategyComplexVisual,
			wantNeedsExtract: true,
		},
		{
			name: "single large image is simple visual",
			sig: pdfread.Signals{
				PageNumber: 2,
				Images:     []pdfread.ImageDim{{Width: 300, Height: 300}},
			},
			wantStrategy:     types.StrategySimpleVisual,
			wantNeedsExtract: true,
		},
		{
			name: "vector drawing density",
			sig: pdfread.Signals{
				PageNumber:      3,
				VectorItemCount: 6000,
			},
			wantStrategy:     types.StrategyVectorDrawing,
			wantNeedsExtract: true,
		},
		{
			name: "vector count at threshold stays text",
			sig: pdfread.Signals{
				PageNumber:      4,
				VectorItemCount: 5000,
			},
			wantStrategy:     types.StrategyTextOnly,
			wantNeedsExtract: false,
		},
		{
			name: "table page",
			sig: pdfread.Signals{
				PageNumber: 5,
				TableCount: 1,
			},
			wantStrategy:     types.StrategyTableOnly,
			wantNeedsExtract: true,
		},
		{
			name: "plain text page",
			sig: pdfread.Signals{
				PageNumber:       6,
				NativeTextLength: 2400,
			},
			wantStrategy:     types.StrategyTextOnly,
			wantNeedsExtract: false,
		},
		{
			name: "hundreds of tiny slivers are not complex visual",
			sig: pdfread.Signals{
				PageNumber: 7,
				Images:     manySlivers(300),
			},
			wantStrategy:     types.StrategyTextOnly,
			wantNeedsExtract: false,
		},
		{
			name: "images win over vector density",
			sig: pdfread.Signals{
				PageNumber:      8,
				Images:          []pdfread.ImageDim{{Width: 100, Height: 100}, {Width: 100, Height: 100}},
				VectorItemCount: 9000,
				TableCount:      3,
			},
			wantStrategy:     types.StrategyComplexVisual,
			wantNeedsExtract: true,
		},
		{
			name: "vector density wins over tables",
			sig: pdfread.Signals{
				PageNumber:      9,
				VectorItemCount: 8000,
				TableCount:      2,
			},
			wantStrategy:     types.StrategyVectorDrawing,
			wantNeedsExtract: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, dec := Analyze(&tt.sig, testCfg())

			if dec.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %s, want %s", dec.Strategy, tt.wantStrategy)
			}
			if dec.NeedsExtraction != tt.wantNeedsExtract {
				t.Errorf("needs_extraction = %v, want %v", dec.NeedsExtraction, tt.wantNeedsExtract)
			}
			if page.PageNumber != tt.sig.PageNumber {
				t.Errorf("page number = %d, want %d", page.PageNumber, tt.sig.PageNumber)
			}
			if page.RasterImageCount != len(tt.sig.Images) {
				t.Errorf("raster count = %d, want %d", page.RasterImageCount, len(tt.sig.Images))
			}
		})
	}
}

func TestAnalyze_MeaningfulCount(t *testing.T) {
	sig := pdfread.Signals{
		PageNumber: 1,
		Images: []pdfread.ImageDim{
			{Width: 10, Height: 10},   // icon, filtered
			{Width: 49, Height: 500},  // sliver, filtered (width below minimum)
			{Width: 300, Height: 200}, // meaningful
		},
	}
	page, _ := Analyze(&sig, testCfg())
	if page.MeaningfulImageCount != 1 {
		t.Errorf("meaningful count = %d, want 1", page.MeaningfulImageCount)
	}
	if page.RasterImageCount != 3 {
		t.Errorf("raster count = %d, want 3", page.RasterImageCount)
	}
}

func TestFallbackPage(t *testing.T) {
	page, dec := FallbackPage(12)
	if page.PageNumber != 12 {
		t.Errorf("page number = %d, want 12", page.PageNumber)
	}
	if dec.Strategy != types.StrategyTextOnly {
		t.Errorf("strategy = %s, want %s", dec.Strategy, types.StrategyTextOnly)
	}
	if dec.NeedsExtraction {
		t.Error("fallback page should not need extraction")
	}
}

func manySlivers(n int) []pdfread.ImageDim {
	out := make([]pdfread.ImageDim, n)
	for i := range out {
		out[i] = pdfread.ImageDim{Width: 8, Height: 600}
	}
	return out
}
