package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockLayout is a deterministic OCRLayout for testing. The same input
// always yields the same result, so pipeline runs are reproducible.
type MockLayout struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailPages  map[int]bool // fail only these pages
	Result     *LayoutResult
	Space      CoordSpace

	// Rate limiting
	RPS        float64
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
}

// NewMockLayout creates a mock layout provider with sensible defaults.
func NewMockLayout() *MockLayout {
	return &MockLayout{
		Space:      CoordNormalizedThousand,
		RPS:        100,
		Retries:    3,
		RetryDelay: time.Millisecond,
	}
}

// Name returns the provider identifier.
func (m *MockLayout) Name() string { return MockName }

// RequestsPerSecond returns the RPS limit.
func (m *MockLayout) RequestsPerSecond() float64 { return m.RPS }

// MaxRetries returns the retry budget.
func (m *MockLayout) MaxRetries() int { return m.Retries }

// RetryDelayBase returns the base retry delay.
func (m *MockLayout) RetryDelayBase() time.Duration { return m.RetryDelay }

// RequestCount returns how many calls have been made.
func (m *MockLayout) RequestCount() int64 { return m.requestCount.Load() }

// ExtractLayout returns the configured result for the page.
func (m *MockLayout) ExtractLayout(ctx context.Context, image []byte, pageNum int) (*LayoutResult, error) {
	m.requestCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if m.ShouldFail || m.FailPages[pageNum] {
		return nil, fmt.Errorf("mock layout failure for page %d", pageNum)
	}

	if m.Result != nil {
		out := *m.Result
		out.Space = m.Space
		out.Provider = MockName
		return &out, nil
	}

	// Default: one narrative element covering the upper half of the page.
	return &LayoutResult{
		Elements: []LayoutElement{
			{
				Category: "NarrativeText",
				Text:     fmt.Sprintf("mock ocr text for page %d", pageNum),
				BBox:     &[4]float64{100, 100, 900, 500},
			},
		},
		Space:    m.Space,
		Provider: MockName,
	}, nil
}

// MockCaptioner is a deterministic Captioner for testing.
type MockCaptioner struct {
	Latency    time.Duration
	ShouldFail bool
	// CaptionFor overrides the generated caption per kind when set.
	CaptionFor map[CaptionKind]string

	RPS        float64
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
}

// NewMockCaptioner creates a mock captioner with sensible defaults.
func NewMockCaptioner() *MockCaptioner {
	return &MockCaptioner{
		RPS:        100,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}
}

// Name returns the provider identifier.
func (m *MockCaptioner) Name() string { return MockName }

// RequestsPerSecond returns the RPS limit.
func (m *MockCaptioner) RequestsPerSecond() float64 { return m.RPS }

// MaxRetries returns the retry budget.
func (m *MockCaptioner) MaxRetries() int { return m.Retries }

// RetryDelayBase returns the base retry delay.
func (m *MockCaptioner) RetryDelayBase() time.Duration { return m.RetryDelay }

// RequestCount returns how many calls have been made.
func (m *MockCaptioner) RequestCount() int64 { return m.requestCount.Load() }

// Caption returns a deterministic caption for the region.
func (m *MockCaptioner) Caption(ctx context.Context, image []byte, kind CaptionKind) (string, error) {
	m.requestCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if m.ShouldFail {
		return "", fmt.Errorf("mock caption failure")
	}

	if c, ok := m.CaptionFor[kind]; ok {
		return c, nil
	}
	return fmt.Sprintf("mock caption for %s region", kind), nil
}

// Verify interface compliance
var (
	_ OCRLayout = (*MockLayout)(nil)
	_ Captioner = (*MockCaptioner)(nil)
)
