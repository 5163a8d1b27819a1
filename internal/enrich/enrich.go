// Package enrich attaches structural metadata to extracted elements:
// inherited section titles, numbering patterns, and page context. It is
// a pure pass over the ordered element stream and never errors.
package enrich

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jackzampolin/leaflet/internal/types"
)

// headingNumberRe matches section numbering like "3", "1.2", "4.1.7" at
// the start of a line, followed by the heading text.
var headingNumberRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+\S`)

var digitRe = regexp.MustCompile(`\d`)

const maxHeadingLen = 120

// Enrich walks elements in document order and attaches structural
// metadata to each. The most recently seen heading's text is carried
// forward as the inherited section title until the next heading; before
// any heading is seen the inherited title is empty. Flat inheritance
// only: nested numbering stays a literal string, never a tree.
//
// strategies maps page numbers to their analyzer classification; pages
// absent from the map read as text_only.
func Enrich(elements []types.RawElement, sourceFilename string, strategies map[int]types.PageStrategy) []types.EnrichedElement {
	out := make([]types.EnrichedElement, 0, len(elements))

	currentTitle := ""
	for _, el := range elements {
		trimmed := strings.TrimSpace(el.Text)

		pattern := ""
		if isHeading(el, trimmed) {
			currentTitle = trimmed
			if m := headingNumberRe.FindStringSubmatch(trimmed); m != nil {
				pattern = m[1]
			}
		}

		context := types.StrategyTextOnly
		if s, ok := strategies[el.PageNumber]; ok {
			context = s
		}

		out = append(out, types.EnrichedElement{
			Element: el,
			Structural: types.StructuralMetadata{
				SourceFilename:        sourceFilename,
				PageNumber:            el.PageNumber,
				BBox:                  el.BBox,
				ElementCategory:       normalizeCategory(el.Category),
				SectionTitleInherited: currentTitle,
				SectionTitlePattern:   pattern,
				HasNumbers:            digitRe.MatchString(el.Text),
				ContentLength:         len(trimmed),
				PageContext:           context,
			},
		})
	}
	return out
}

// isHeading reports whether an element starts a new section. Extraction
// already marks style-detected headings as Title; beyond that, numbered
// prose lines ("1.2 Safety") and short all-caps lines count. List items
// never do, even when they begin with a number.
func isHeading(el types.RawElement, trimmed string) bool {
	if trimmed == "" {
		return false
	}
	if el.Category == types.CategoryTitle {
		return true
	}
	if el.Category != types.CategoryNarrativeText && el.Category != types.CategoryText {
		return false
	}
	if len(trimmed) > maxHeadingLen || strings.Contains(trimmed, "\n") {
		return false
	}
	if headingNumberRe.MatchString(trimmed) {
		return true
	}
	return isAllCaps(trimmed)
}

// isAllCaps reports whether s contains letters and none of them are
// lowercase.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// normalizeCategory folds source-specific category names into the
// closed set {Text, Table, Image, List, Title}.
func normalizeCategory(c types.Category) types.Category {
	switch c {
	case types.CategoryNarrativeText:
		return types.CategoryText
	case types.CategoryListItem:
		return types.CategoryList
	case types.CategoryText, types.CategoryTable, types.CategoryImage, types.CategoryList, types.CategoryTitle:
		return c
	default:
		return types.CategoryText
	}
}
