package pdfread

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextBlock is a native text-layer block with its bounding box in PDF
// point coordinates (origin bottom-left, Y0 = bottom edge, Y1 = top edge).
type TextBlock struct {
	PageNumber int
	Text       string
	X0         float64
	Y0         float64
	X1         float64
	Y1         float64
	FontSize   float64 // dominant font size, heading signal downstream
}

// Vertical gap beyond this multiple of the font size starts a new block.
const blockGapFactor = 1.6

// TextBlocks extracts the native text layer of a page grouped into
// blocks with bounding boxes. Opens the file per call, so it is safe to
// run for multiple pages concurrently. Page numbers are 1-indexed.
func TextBlocks(path string, pageNum int) ([]TextBlock, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF text layer: %w", err)
	}
	defer f.Close()

	if pageNum < 1 || pageNum > r.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNum, r.NumPage())
	}

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d has no content", pageNum)
	}

	texts := page.Content().Text
	if len(texts) == 0 {
		return nil, nil
	}

	lines := groupLines(texts)
	blocks := groupBlocks(lines)

	out := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		tb := b.finish(pageNum)
		if strings.TrimSpace(tb.Text) == "" {
			continue
		}
		out = append(out, tb)
	}
	return out, nil
}

// line is a horizontal run of text fragments sharing a baseline.
type line struct {
	frags []pdf.Text
	y     float64
}

// groupLines buckets fragments by baseline, top of page first.
func groupLines(texts []pdf.Text) []line {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []line
	for _, t := range sorted {
		tol := t.FontSize * 0.4
		if tol < 1 {
			tol = 1
		}
		if n := len(lines); n > 0 && abs(lines[n-1].y-t.Y) <= tol {
			lines[n-1].frags = append(lines[n-1].frags, t)
			continue
		}
		lines = append(lines, line{frags: []pdf.Text{t}, y: t.Y})
	}
	return lines
}

// block accumulates consecutive lines separated by normal leading.
type block struct {
	lines []line
}

func groupBlocks(lines []line) []block {
	var blocks []block
	for i, ln := range lines {
		if i == 0 {
			blocks = append(blocks, block{lines: []line{ln}})
			continue
		}
		prev := lines[i-1]
		gap := prev.y - ln.y
		size := dominantFontSize(prev.frags)
		if size <= 0 {
			size = 12
		}
		if gap > size*blockGapFactor {
			blocks = append(blocks, block{lines: []line{ln}})
			continue
		}
		blocks[len(blocks)-1].lines = append(blocks[len(blocks)-1].lines, ln)
	}
	return blocks
}

// finish renders a block to text and computes its bounding box.
func (b block) finish(pageNum int) TextBlock {
	tb := TextBlock{PageNumber: pageNum}
	var sb strings.Builder
	first := true

	for _, ln := range b.lines {
		if !first {
			sb.WriteByte('\n')
		}
		first = false

		var prevEnd float64
		for i, frag := range ln.frags {
			if i > 0 && frag.X-prevEnd > 1.0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(frag.S)
			prevEnd = frag.X + frag.W

			x1 := frag.X + frag.W
			top := frag.Y + frag.FontSize
			if tb.X0 == 0 && tb.Y0 == 0 && tb.X1 == 0 && tb.Y1 == 0 {
				tb.X0, tb.Y0, tb.X1, tb.Y1 = frag.X, frag.Y, x1, top
			} else {
				if frag.X < tb.X0 {
					tb.X0 = frag.X
				}
				if frag.Y < tb.Y0 {
					tb.Y0 = frag.Y
				}
				if x1 > tb.X1 {
					tb.X1 = x1
				}
				if top > tb.Y1 {
					tb.Y1 = top
				}
			}
			if frag.FontSize > tb.FontSize {
				tb.FontSize = frag.FontSize
			}
		}
	}

	tb.Text = sb.String()
	return tb
}

// dominantFontSize returns the most common font size in a fragment run.
func dominantFontSize(frags []pdf.Text) float64 {
	counts := make(map[float64]int)
	for _, f := range frags {
		counts[f.FontSize]++
	}
	var best float64
	bestCount := 0
	for size, n := range counts {
		if n > bestCount {
			best, bestCount = size, n
		}
	}
	return best
}
