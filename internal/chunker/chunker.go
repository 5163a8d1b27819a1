// Package chunker builds retrieval-ready chunks from enriched elements.
// Four ordering-preserving passes: noise filtering, list grouping,
// caption prioritization, and size normalization.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/leaflet/internal/config"
	"github.com/jackzampolin/leaflet/internal/types"
)

// piece is a chunk under construction. sizable marks text-bearing
// pieces that participate in merge/split; caption-derived pieces are
// atomic and exempt.
type piece struct {
	content string
	meta    types.ChunkMetadata
	sizable bool
}

// Construct turns ordered enriched elements into the final chunk list.
// Chunk order follows document order and chunk_index is a dense 0-based
// sequence over the result.
func Construct(elements []types.EnrichedElement, cfg config.ChunkerCfg) []types.Chunk {
	kept := filterNoise(elements)
	pieces := groupLists(kept)
	pieces = prioritizeCaptions(pieces)
	pieces = normalizeSizes(pieces, cfg.MinChunkSize, cfg.MaxChunkSize)
	return finalize(pieces)
}

// filterNoise drops standalone titles (they live on as inherited
// context) and elements with no content at all. A table or image whose
// only content is a caption survives.
func filterNoise(elements []types.EnrichedElement) []types.EnrichedElement {
	var kept []types.EnrichedElement
	for _, el := range elements {
		if el.Structural.ElementCategory == types.CategoryTitle {
			continue
		}
		if strings.TrimSpace(el.Element.Text) == "" && el.Caption() == "" {
			continue
		}
		kept = append(kept, el)
	}
	return kept
}

// groupLists concatenates a narrative lead-in followed by consecutive
// list items into one List piece. Runs never cross a page or section
// boundary, and a lead-in with no following items stays ungrouped.
// Grouping keys off the source categories from extraction, which
// survive on the element alongside the normalized ones.
func groupLists(elements []types.EnrichedElement) []piece {
	var pieces []piece

	i := 0
	for i < len(elements) {
		el := elements[i]

		leadIn := el.Element.Category == types.CategoryNarrativeText &&
			i+1 < len(elements) &&
			elements[i+1].Element.Category == types.CategoryListItem &&
			sameRun(el, elements[i+1])

		if el.Element.Category != types.CategoryListItem && !leadIn {
			pieces = append(pieces, makePiece(el))
			i++
			continue
		}

		group := []types.EnrichedElement{el}
		j := i + 1
		for j < len(elements) &&
			elements[j].Element.Category == types.CategoryListItem &&
			sameRun(el, elements[j]) {
			group = append(group, elements[j])
			j++
		}
		pieces = append(pieces, makeListPiece(group))
		i = j
	}
	return pieces
}

// prioritizeCaptions replaces table/image content with the caption when
// one exists. Captions are strictly preferred over raw markup: they are
// denser and more retrievable.
func prioritizeCaptions(pieces []piece) []piece {
	for i := range pieces {
		p := &pieces[i]
		cat := p.meta.ElementCategory
		if cat != types.CategoryTable && cat != types.CategoryImage {
			continue
		}

		caption := p.meta.TableImageCaption
		if caption == "" {
			caption = p.meta.FullPageImageCaption
		}
		if caption == "" {
			continue
		}

		label := "Image"
		if cat == types.CategoryTable {
			label = "Table"
		}
		p.content = fmt.Sprintf("Type: %s\n%s", label, caption)
		p.sizable = false
	}
	return pieces
}

// normalizeSizes merges undersized text pieces with their next neighbor
// on the same page and section, then splits oversized pieces at
// sentence boundaries. Caption-derived and non-text pieces pass through
// untouched.
func normalizeSizes(pieces []piece, minSize, maxSize int) []piece {
	var merged []piece
	i := 0
	for i < len(pieces) {
		p := pieces[i]
		i++
		if !p.sizable {
			merged = append(merged, p)
			continue
		}
		for len(p.content) < minSize && i < len(pieces) {
			next := pieces[i]
			if !next.sizable ||
				next.meta.PageNumber != p.meta.PageNumber ||
				next.meta.SectionTitleInherited != p.meta.SectionTitleInherited {
				break
			}
			p.content = p.content + "\n" + next.content
			p.meta.BBox = unionBBox(p.meta.BBox, next.meta.BBox)
			p.meta.HasNumbers = p.meta.HasNumbers || next.meta.HasNumbers
			if p.meta.ElementCategory != next.meta.ElementCategory {
				p.meta.ElementCategory = types.CategoryText
			}
			i++
		}
		merged = append(merged, p)
	}

	if maxSize <= 0 {
		return merged
	}

	var out []piece
	for _, p := range merged {
		// The section prefix finalize prepends counts against the size
		// bound, so split against the remaining budget.
		budget := maxSize
		if p.sizable && p.meta.SectionTitleInherited != "" {
			budget -= len(sectionPrefix(p.meta.SectionTitleInherited))
			if budget < 1 {
				budget = 1
			}
		}
		if !p.sizable || len(p.content) <= budget {
			out = append(out, p)
			continue
		}
		for _, part := range splitAtSentences(p.content, budget) {
			split := p
			split.content = part
			out = append(out, split)
		}
	}
	return out
}

// finalize applies the section prefix, assigns dense chunk indexes and
// deterministic chunk IDs, and records the final content length.
func finalize(pieces []piece) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(pieces))
	for idx, p := range pieces {
		content := p.content
		if p.sizable && p.meta.SectionTitleInherited != "" {
			content = sectionPrefix(p.meta.SectionTitleInherited) + content
		}
		p.meta.ChunkIndex = idx
		p.meta.ContentLength = len(content)
		chunks = append(chunks, types.Chunk{
			ChunkID:  fmt.Sprintf("chunk-%04d", idx),
			Content:  content,
			Metadata: p.meta,
		})
	}
	return chunks
}

func sectionPrefix(title string) string {
	return "Section: " + title + "\n"
}

func makePiece(el types.EnrichedElement) piece {
	cat := el.Structural.ElementCategory
	return piece{
		content: strings.TrimSpace(el.Element.Text),
		meta:    metadataFor(el, cat),
		sizable: cat == types.CategoryText || cat == types.CategoryList,
	}
}

func makeListPiece(group []types.EnrichedElement) piece {
	parts := make([]string, 0, len(group))
	var bbox *types.BBox
	hasNumbers := false
	for _, el := range group {
		parts = append(parts, strings.TrimSpace(el.Element.Text))
		bbox = unionBBox(bbox, el.Structural.BBox)
		hasNumbers = hasNumbers || el.Structural.HasNumbers
	}

	meta := metadataFor(group[0], types.CategoryList)
	meta.BBox = bbox
	meta.HasNumbers = hasNumbers
	return piece{
		content: strings.Join(parts, "\n"),
		meta:    meta,
		sizable: true,
	}
}

func metadataFor(el types.EnrichedElement, cat types.Category) types.ChunkMetadata {
	meta := types.ChunkMetadata{
		SourceFilename:        el.Structural.SourceFilename,
		PageNumber:            el.Structural.PageNumber,
		BBox:                  el.Structural.BBox,
		ElementCategory:       cat,
		SectionTitleInherited: el.Structural.SectionTitleInherited,
		SectionTitlePattern:   el.Structural.SectionTitlePattern,
		HasNumbers:            el.Structural.HasNumbers,
		PageContext:           el.Structural.PageContext,
	}
	if el.Enrichment != nil {
		meta.TableImageCaption = el.Enrichment.TableImageCaption
		meta.FullPageImageCaption = el.Enrichment.FullPageImageCaption
	}
	return meta
}

func sameRun(a, b types.EnrichedElement) bool {
	return a.Structural.PageNumber == b.Structural.PageNumber &&
		a.Structural.SectionTitleInherited == b.Structural.SectionTitleInherited
}

// unionBBox returns a fresh box covering both inputs; nil inputs are
// skipped rather than zeroing the result.
func unionBBox(a, b *types.BBox) *types.BBox {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		out := *b
		return &out
	case b == nil:
		out := *a
		return &out
	default:
		out := a.Union(*b)
		return &out
	}
}

var sentenceEndRe = regexp.MustCompile(`([.!?])(\s+)`)

// splitAtSentences cuts s into parts no longer than maxSize, breaking
// only at sentence boundaries. A single sentence longer than maxSize is
// emitted whole rather than cut mid-sentence.
func splitAtSentences(s string, maxSize int) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(s, -1) {
		// loc[3] is the end of the punctuation, loc[5] the end of the
		// trailing whitespace.
		sentences = append(sentences, strings.TrimSpace(s[last:loc[3]]))
		last = loc[5]
	}
	if tail := strings.TrimSpace(s[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) <= 1 {
		return []string{s}
	}

	var parts []string
	current := ""
	for _, sent := range sentences {
		switch {
		case current == "":
			current = sent
		case len(current)+1+len(sent) > maxSize:
			parts = append(parts, current)
			current = sent
		default:
			current = current + " " + sent
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
